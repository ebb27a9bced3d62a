package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// GenericToolHandler is a type-safe handler function.
type GenericToolHandler[TInput any, TOutput any] func(ctx context.Context, input TInput) (TOutput, error)

// GenericTool is a type-safe tool whose parameter schema is generated from
// the input struct's tags.
type GenericTool[TInput any, TOutput any] struct {
	Group       string
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Handler     GenericToolHandler[TInput, TOutput]
}

// GetGroup returns the tool group used for approval policy lookups.
func (gt *GenericTool[TInput, TOutput]) GetGroup() string {
	return gt.Group
}

// GetName returns the tool's name.
func (gt *GenericTool[TInput, TOutput]) GetName() string {
	return gt.Name
}

// GetDescription returns the tool's description.
func (gt *GenericTool[TInput, TOutput]) GetDescription() string {
	return gt.Description
}

// GetParameters returns the JSON schema for the tool's parameters.
func (gt *GenericTool[TInput, TOutput]) GetParameters() *jsonschema.Schema {
	return gt.Schema
}

// Execute parses and validates the call arguments, runs the handler, and
// packages the outcome. Failures become error responses rather than bare
// errors so a single tool failure never terminates the conversation; the
// handler error is still returned for classification (timeout, cancel).
func (gt *GenericTool[TInput, TOutput]) Execute(ctx context.Context, call *ToolCall) (*ToolResponse, error) {
	var input TInput
	if err := json.Unmarshal(call.Arguments, &input); err != nil {
		return &ToolResponse{
			Type:    "error",
			Content: []byte(fmt.Sprintf("failed to parse input: %v", err)),
			IsError: true,
		}, nil
	}

	if err := gt.validateRequired(input); err != nil {
		return &ToolResponse{
			Type:    "error",
			Content: []byte(fmt.Sprintf("validation failed: %v", err)),
			IsError: true,
		}, nil
	}

	output, herr := gt.Handler(ctx, input)
	if herr != nil {
		return &ToolResponse{
			Type:    "error",
			Content: []byte(herr.Error()),
			IsError: true,
		}, herr
	}

	content, err := json.Marshal(output)
	if err != nil {
		return &ToolResponse{
			Type:    "error",
			Content: []byte(fmt.Sprintf("failed to marshal result: %v", err)),
			IsError: true,
		}, nil
	}

	return &ToolResponse{
		Type:    "success",
		Content: content,
		IsError: false,
	}, nil
}

// validateRequired checks that required fields are not zero-valued.
func (gt *GenericTool[TInput, TOutput]) validateRequired(input TInput) error {
	if gt.Schema == nil || gt.Schema.Required == nil {
		return nil
	}

	val := reflect.ValueOf(input)
	typ := val.Type()

	for _, requiredField := range gt.Schema.Required {
		found := false
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			fieldName := strings.Split(field.Tag.Get("json"), ",")[0]
			if fieldName != requiredField {
				continue
			}
			found = true
			if val.Field(i).IsZero() {
				return fmt.Errorf("required field '%s' is missing", requiredField)
			}
			break
		}
		if !found {
			return fmt.Errorf("required field '%s' not found in struct", requiredField)
		}
	}

	return nil
}

// NewGenericTool creates a generic tool with automatic schema generation
// from the input struct type.
func NewGenericTool[TInput any, TOutput any](group, name, description string, handler GenericToolHandler[TInput, TOutput]) (Tool, error) {
	var input TInput
	inputType := reflect.TypeOf(input)
	if inputType.Kind() == reflect.Ptr {
		inputType = inputType.Elem()
	}
	if inputType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("tool input type must be a struct, got %s", inputType.Kind())
	}

	var output TOutput
	outputType := reflect.TypeOf(output)
	if outputType.Kind() == reflect.Ptr {
		outputType = outputType.Elem()
	}
	if outputType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("tool output type must be a struct, got %s", outputType.Kind())
	}

	reflector := jsonschema.Reflector{}
	schema, err := reflector.Reflect(input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	return &GenericTool[TInput, TOutput]{
		Group:       group,
		Name:        name,
		Description: description,
		Schema:      &schema,
		Handler:     handler,
	}, nil
}

var _ Tool = (*GenericTool[struct{}, struct{}])(nil)
