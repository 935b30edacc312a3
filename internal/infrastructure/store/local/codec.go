package local

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"learnplatform/internal/infrastructure/store"
)

// wireValue mirrors the DynamoDB JSON shape of an attribute value. Exactly one
// field is set. Collections are pointers so that empty ones survive omitempty.
type wireValue struct {
	S    *string               `json:"S,omitempty"`
	N    *string               `json:"N,omitempty"`
	B    *[]byte               `json:"B,omitempty"`
	BOOL *bool                 `json:"BOOL,omitempty"`
	NULL bool                  `json:"NULL,omitempty"`
	SS   []string              `json:"SS,omitempty"`
	NS   []string              `json:"NS,omitempty"`
	BS   [][]byte              `json:"BS,omitempty"`
	M    *map[string]wireValue `json:"M,omitempty"`
	L    *[]wireValue          `json:"L,omitempty"`
}

func encodeItem(item store.Item) ([]byte, error) {
	wire := make(map[string]wireValue, len(item))
	for name, av := range item {
		w, err := toWire(av)
		if err != nil {
			return nil, fmt.Errorf("encode attribute %s: %w", name, err)
		}
		wire[name] = w
	}
	return json.Marshal(wire)
}

func decodeItem(data []byte) (store.Item, error) {
	var wire map[string]wireValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	item := make(store.Item, len(wire))
	for name, w := range wire {
		av, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("decode attribute %s: %w", name, err)
		}
		item[name] = av
	}
	return item, nil
}

func toWire(av types.AttributeValue) (wireValue, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return wireValue{S: &v.Value}, nil
	case *types.AttributeValueMemberN:
		return wireValue{N: &v.Value}, nil
	case *types.AttributeValueMemberB:
		return wireValue{B: &v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return wireValue{BOOL: &v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return wireValue{NULL: true}, nil
	case *types.AttributeValueMemberSS:
		return wireValue{SS: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return wireValue{NS: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return wireValue{BS: v.Value}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]wireValue, len(v.Value))
		for k, inner := range v.Value {
			w, err := toWire(inner)
			if err != nil {
				return wireValue{}, err
			}
			m[k] = w
		}
		return wireValue{M: &m}, nil
	case *types.AttributeValueMemberL:
		l := make([]wireValue, len(v.Value))
		for i, inner := range v.Value {
			w, err := toWire(inner)
			if err != nil {
				return wireValue{}, err
			}
			l[i] = w
		}
		return wireValue{L: &l}, nil
	default:
		return wireValue{}, fmt.Errorf("unsupported attribute value %T", av)
	}
}

func fromWire(w wireValue) (types.AttributeValue, error) {
	switch {
	case w.S != nil:
		return &types.AttributeValueMemberS{Value: *w.S}, nil
	case w.N != nil:
		return &types.AttributeValueMemberN{Value: *w.N}, nil
	case w.B != nil:
		return &types.AttributeValueMemberB{Value: *w.B}, nil
	case w.BOOL != nil:
		return &types.AttributeValueMemberBOOL{Value: *w.BOOL}, nil
	case w.NULL:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case w.SS != nil:
		return &types.AttributeValueMemberSS{Value: w.SS}, nil
	case w.NS != nil:
		return &types.AttributeValueMemberNS{Value: w.NS}, nil
	case w.BS != nil:
		return &types.AttributeValueMemberBS{Value: w.BS}, nil
	case w.M != nil:
		m := make(map[string]types.AttributeValue, len(*w.M))
		for k, inner := range *w.M {
			av, err := fromWire(inner)
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case w.L != nil:
		l := make([]types.AttributeValue, len(*w.L))
		for i, inner := range *w.L {
			av, err := fromWire(inner)
			if err != nil {
				return nil, err
			}
			l[i] = av
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	default:
		return nil, fmt.Errorf("empty attribute value")
	}
}
