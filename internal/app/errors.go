package app

import (
	"encoding/json"
	"fmt"
)

type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("app error (%d): %s", e.Code, e.Message)
}

// Errors are replied as {"error": message}.
func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(ErrorResponse{Error: e.Message})
}
