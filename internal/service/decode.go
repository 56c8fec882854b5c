package service

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	apierrors "github.com/R3E-Network/storefront_layer/internal/errors"
)

// Shape is the declared top-level form of an endpoint's response.
type Shape int

const (
	// ShapeObject is a bare JSON object.
	ShapeObject Shape = iota
	// ShapeData is an object whose payload sits under "data".
	ShapeData
	// ShapeList is a JSON array.
	ShapeList
)

func (s Shape) String() string {
	switch s {
	case ShapeObject:
		return "object"
	case ShapeData:
		return "data envelope"
	case ShapeList:
		return "list"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Decode validates raw against shape and unmarshals the payload into T.
// A mismatch yields a decode *errors.APIError; nothing is guessed.
func Decode[T any](raw json.RawMessage, shape Shape) (T, error) {
	var out T

	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return out, apierrors.Decode(fmt.Sprintf("expected %s response, got invalid JSON", shape), nil)
	}

	root := gjson.ParseBytes(raw)
	payload := raw

	switch shape {
	case ShapeObject:
		if !root.IsObject() {
			return out, shapeMismatch(shape, root)
		}
	case ShapeList:
		if !root.IsArray() {
			return out, shapeMismatch(shape, root)
		}
	case ShapeData:
		data := root.Get("data")
		if !root.IsObject() || !data.Exists() {
			return out, shapeMismatch(shape, root)
		}
		payload = json.RawMessage(data.Raw)
	default:
		return out, apierrors.Decode(fmt.Sprintf("unknown response shape %d", int(shape)), nil)
	}

	if err := json.Unmarshal(payload, &out); err != nil {
		return out, apierrors.Decode(fmt.Sprintf("decode %s response", shape), err)
	}
	return out, nil
}

func shapeMismatch(want Shape, got gjson.Result) error {
	kind := got.Type.String()
	switch {
	case got.IsObject():
		kind = "object"
	case got.IsArray():
		kind = "array"
	}
	return apierrors.Decode(fmt.Sprintf("expected %s response, got %s", want, kind), nil)
}
