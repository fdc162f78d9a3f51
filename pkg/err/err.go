package errprocess

import (
	"fmt"

	"social_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Wrap log errMsg with the cause and return an error that still matches cause via errors.Is
func Wrap(errMsg string, cause error) error {
	logger.Log.Error(errMsg, zap.Error(cause))
	return fmt.Errorf("%s: %w", errMsg, cause)
}
