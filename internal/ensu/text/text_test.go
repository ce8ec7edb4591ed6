package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Yucatán":              "YUCATAN",
		"  mérida ":            "MERIDA",
		"Peto\r\n":             "PETO",
		"Ñuu  Savi":            "NUU SAVI",
		"muña":                 "MUNA",
		"San  Luis\tPotosí":    "SAN LUIS POTOSI",
		"Michoacán de Ocampo":  "MICHOACAN DE OCAMPO",
		"":                     "",
		"QUINTANA ROO":         "QUINTANA ROO",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"Yucatán", "Tekax de Álvaro Obregón", "Muña", " x  y ", "ﬁesta", "Ciudad de México", "ümlaut"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestResolveEntity(t *testing.T) {
	assert.Equal(t, "YUCATAN", ResolveEntity("31"))
	assert.Equal(t, "AGUASCALIENTES", ResolveEntity("1"))
	assert.Equal(t, "AGUASCALIENTES", ResolveEntity("01"))
	assert.Equal(t, "99", ResolveEntity("99"))
	assert.Equal(t, "YUCATAN", ResolveEntity(" yucatán "))
}
