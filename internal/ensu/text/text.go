package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var enyeReplacer = strings.NewReplacer("Ñ", "N", "ñ", "N")

// Normalize folds a free-text field to its comparison form: diacritics stripped,
// Ñ mapped to N, uppercased, whitespace collapsed. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = enyeReplacer.Replace(s)

	// A fresh chain per call; transform.Chain keeps internal state.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	return strings.Join(strings.Fields(strings.ToUpper(stripped)), " ")
}

// inegiStates is the INEGI state catalog, keyed by two-digit code.
var inegiStates = map[string]string{
	"01": "AGUASCALIENTES",
	"02": "BAJA CALIFORNIA",
	"03": "BAJA CALIFORNIA SUR",
	"04": "CAMPECHE",
	"05": "COAHUILA DE ZARAGOZA",
	"06": "COLIMA",
	"07": "CHIAPAS",
	"08": "CHIHUAHUA",
	"09": "CIUDAD DE MEXICO",
	"10": "DURANGO",
	"11": "GUANAJUATO",
	"12": "GUERRERO",
	"13": "HIDALGO",
	"14": "JALISCO",
	"15": "MEXICO",
	"16": "MICHOACAN DE OCAMPO",
	"17": "MORELOS",
	"18": "NAYARIT",
	"19": "NUEVO LEON",
	"20": "OAXACA",
	"21": "PUEBLA",
	"22": "QUERETARO",
	"23": "QUINTANA ROO",
	"24": "SAN LUIS POTOSI",
	"25": "SINALOA",
	"26": "SONORA",
	"27": "TABASCO",
	"28": "TAMAULIPAS",
	"29": "TLAXCALA",
	"30": "VERACRUZ DE IGNACIO DE LA LLAVE",
	"31": "YUCATAN",
	"32": "ZACATECAS",
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ResolveEntity normalizes an entity value. Some survey eras carry the numeric state code
// instead of the name; those are mapped through the INEGI catalog. Unknown codes are kept as is.
func ResolveEntity(v string) string {
	s := strings.TrimSpace(v)
	if isDigits(s) {
		key := s
		if len(key) == 1 {
			key = "0" + key
		}
		if name, ok := inegiStates[key]; ok {
			return name
		}
		return s
	}
	return Normalize(s)
}
