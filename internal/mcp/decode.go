package mcp

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/dupsweep/internal/errors"
)

// decode unmarshals tool arguments into T. A mistyped argument comes back as
// INVALID_REQUEST naming the argument.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("arguments are not JSON: %v", err))
	}
	if err := json.Unmarshal(b, &result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return result, errors.NewInvalidRequest(fmt.Sprintf("argument %q must be a %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value))
		}
		return result, errors.NewInvalidRequest(fmt.Sprintf("invalid arguments: %v", err))
	}
	return result, nil
}
