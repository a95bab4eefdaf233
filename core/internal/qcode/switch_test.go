package qcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSwitch(t *testing.T) {
	tests := []struct {
		fragment string
		op       ExpOp
	}{
		{"if sales > 1000 then 'high' else 'low'", OpGreaterThan},
		{"if sales < 1000 then 'high' else 'low'", OpLesserThan},
		{"if sales = 1000 then 'high' else 'low'", OpEquals},
		{"if sales >= 1000 then 'high' else 'low'", OpGreaterOrEquals},
		{"if sales <= 1000 then 'high' else 'low'", OpLesserOrEquals},
	}

	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			sw := ExtractSwitch(tt.fragment, "sales")
			require.NotNil(t, sw)
			require.Len(t, sw.Branches, 1)

			b := sw.Branches[0]
			assert.Equal(t, &Exp{Op: tt.op, Args: []Value{RefVal("sales"), NumVal(1000)}}, b.Case)
			assert.Equal(t, "high", b.Then)
			assert.Equal(t, "low", sw.Default)
		})
	}
}

func TestExtractSwitchNone(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		field    string
	}{
		{"other field", "if year > 2020 then 'new' else 'old'", "sales"},
		{"not an integer", "if sales > lots then 'high' else 'low'", "sales"},
		{"no else", "if sales > 1000 then 'high'", "sales"},
		{"unquoted", "if sales > 1000 then high else low", "sales"},
		{"empty", "", "sales"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ExtractSwitch(tt.fragment, tt.field))
		})
	}
}

func TestExtractSwitchLowercases(t *testing.T) {
	sw := ExtractSwitch("If Sales > 5 Then 'High' Else 'Low'", "sales")
	require.NotNil(t, sw)
	assert.Equal(t, "high", sw.Branches[0].Then)
	assert.Equal(t, "low", sw.Default)
}

func TestExtractSwitchNonASCII(t *testing.T) {
	sw := ExtractSwitch("if größe > 5 then 'groß' else 'klein'", "größe")
	require.NotNil(t, sw)
	assert.Equal(t, &Exp{Op: OpGreaterThan, Args: []Value{RefVal("größe"), NumVal(5)}}, sw.Branches[0].Case)
	assert.Equal(t, "groß", sw.Branches[0].Then)
	assert.Equal(t, "klein", sw.Default)
}
