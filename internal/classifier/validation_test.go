package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLuhnValid(t *testing.T) {
	tests := []struct {
		number    string
		wantValid bool
	}{
		{"4111111111111111", true},
		{"5500000000000004", true},
		{"4111111111111112", false},
		{"1", false},
		{"12", false},
		{"41111111111x1111", false},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			assert.Equal(t, tt.wantValid, luhnValid(tt.number))
		})
	}
}

func TestValidateIBAN(t *testing.T) {
	tests := []struct {
		name      string
		iban      string
		wantValid bool
	}{
		{"german", "DE89370400440532013000", true},
		{"german spaced", "DE89 3704 0044 0532 0130 00", true},
		{"spanish", "ES9121000418450200051332", true},
		{"british", "GB29NWBK60161331926819", true},
		{"bad checksum", "DE89370400440532013001", false},
		{"bad length", "DE8937040044053201300", false},
		{"unknown country", "ZZ89370400440532013000", false},
		{"lowercase", "de89370400440532013000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantValid, validate(validationIBAN, tt.iban))
		})
	}
}

func TestValidateUnknownKindPasses(t *testing.T) {
	assert.True(t, validate("", "anything"))
}

func TestStripNonDigits(t *testing.T) {
	assert.Equal(t, "4111111111111111", stripNonDigits("4111-1111 1111-1111"))
}
