package converter

import (
	"testing"

	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
)

func TestDfToResponseRecords(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"YUCATAN", "YUCATAN"}, series.String, types.ColEntity),
		series.New([]string{"MERIDA", "UMAN"}, series.String, types.ColMunicipality),
		series.New([]string{"2", "x"}, series.String, types.ColResponseCode),
	)

	records := DfToResponseRecords(df)
	assert.Equal(t, []types.ResponseRecord{
		{Entity: "YUCATAN", Municipality: "MERIDA", Code: 2},
		{Entity: "YUCATAN", Municipality: "UMAN", Code: 0},
	}, records)
}
