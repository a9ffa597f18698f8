package validate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type sample struct {
	Name  string `mapstructure:"name" validate:"required"`
	Port  int    `json:"port" validate:"gte=1,lte=65535"`
	Mode  string `validate:"omitempty,oneof=a b"`
	Inner struct {
		Value string `json:"value" validate:"required"`
	} `json:"inner"`
}

func TestStruct(t *testing.T) {
	testCases := map[string]struct {
		val       sample
		expFields []string
	}{
		"valid": {
			val: func() sample {
				s := sample{Name: "n", Port: 443, Mode: "a"}
				s.Inner.Value = "v"
				return s
			}(),
		},
		"missingName": {
			val: func() sample {
				s := sample{Port: 443}
				s.Inner.Value = "v"
				return s
			}(),
			expFields: []string{"name"},
		},
		"everythingWrong": {
			val:       sample{Port: 0, Mode: "c"},
			expFields: []string{"name", "port", "Mode", "value"},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			err := Struct(tc.val)
			if tc.expFields == nil {
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
				return
			}

			var fe FieldErrors
			if !errors.As(err, &fe) {
				t.Fatalf("expected FieldErrors, got %T: %v", err, err)
			}

			if diff := cmp.Diff(tc.expFields, fe.Fields()); diff != "" {
				t.Errorf("field mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStruct_RequiredMessage(t *testing.T) {
	err := Struct(sample{Port: 1})

	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}

	if fe[0].Err != "This field is required" {
		t.Errorf("unexpected message: %q", fe[0].Err)
	}
}

func TestVar(t *testing.T) {
	if err := Var("verb", "GET", "oneof=GET POST"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	err := Var("verb", "TRACE", "oneof=GET POST")

	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}

	if diff := cmp.Diff([]string{"verb"}, fe.Fields()); diff != "" {
		t.Errorf("field mismatch (-want +got):\n%s", diff)
	}
}
