package query

import (
	"strings"
	"testing"

	"github.com/farxc/ensu_insecurity/internal/ensu/converter"
	"github.com/farxc/ensu_insecurity/internal/ensu/schema"
	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/farxc/ensu_insecurity/internal/logger"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, content string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.ReadCSV(
		strings.NewReader(content),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{"NA", "NaN", "<nil>", ""}),
	)
	require.NoError(t, df.Error())
	return df
}

func canonical(t *testing.T, content string) dataframe.DataFrame {
	t.Helper()
	df := readCSV(t, content)
	m, err := schema.NewNormalizer(nil).Resolve(df.Names())
	require.NoError(t, err)
	out, err := SelectCanonical(df, m)
	require.NoError(t, err)
	return out
}

var yucatan = FilterOptions{TargetEntity: "YUCATAN", ValidCodes: []int{1, 2, 9}, ResolveCodes: true}

func TestSelectCanonicalRenames(t *testing.T) {
	df := canonical(t, "ID,ENT,NOM_MUN,BP11\n1,31,Mérida,1\n")
	assert.Equal(t, []string{types.ColEntity, types.ColMunicipality, types.ColResponseCode}, df.Names())
}

func TestSelectCanonicalMissingMapping(t *testing.T) {
	df := readCSV(t, "NOM_ENT\nX\n")
	_, err := SelectCanonical(df, schema.Mapping{types.ColEntity: "NOM_ENT"})
	assert.ErrorIs(t, err, types.ErrSchemaMissingField)
}

func TestFilterKeepsTargetRowsOnly(t *testing.T) {
	df := canonical(t, "NOM_ENT,NOM_MUN,BP1_1\n"+
		"YUCATAN,MERIDA,1\n"+
		"Yucatán,Mérida,2\n"+
		"31,Mérida,9\n"+
		"OAXACA,OAXACA,1\n"+
		"YUCATAN ,Progreso,2.0\n")

	out, stats, err := FilterResponses(df, yucatan, logger.Discard())
	require.NoError(t, err)

	assert.Equal(t, 4, out.Nrow())
	assert.Equal(t, types.FilterStats{TotalRows: 5, OtherEntity: 1, TargetRows: 4}, stats)

	records := converter.DfToResponseRecords(out)
	assert.Equal(t, types.ResponseRecord{Entity: "YUCATAN", Municipality: "MERIDA", Code: 2}, records[1])
	assert.Equal(t, types.ResponseRecord{Entity: "YUCATAN", Municipality: "PROGRESO", Code: 2}, records[3])
}

func TestFilterCountsInvalidCodeExactlyOnce(t *testing.T) {
	df := canonical(t, "NOM_ENT,NOM_MUN,BP1_1\n"+
		"YUCATAN,MERIDA,1\n"+
		"YUCATAN,MERIDA,5\n")

	out, stats, err := FilterResponses(df, yucatan, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Nrow())
	assert.Equal(t, 1, stats.InvalidCode)
}

func TestFilterDropsNonNumericAndMissingCodes(t *testing.T) {
	df := canonical(t, "NOM_ENT,NOM_MUN,BP1_1\n"+
		"YUCATAN,MERIDA,b\n"+
		"YUCATAN,MERIDA,\n"+
		"YUCATAN,MERIDA,1.5\n")

	out, stats, err := FilterResponses(df, yucatan, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Nrow())
	assert.Equal(t, 3, stats.InvalidCode)
}

func TestFilterExcludesEmptyText(t *testing.T) {
	df := canonical(t, "NOM_ENT,NOM_MUN,BP1_1\n"+
		"YUCATAN,,1\n"+
		",MERIDA,1\n"+
		"YUCATAN,   ,2\n"+
		"YUCATAN,TEKAX,2\n")

	out, stats, err := FilterResponses(df, yucatan, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Nrow())
	assert.Equal(t, 3, stats.MissingText)
}

func TestFilterIsExactMatchNotSubstring(t *testing.T) {
	df := canonical(t, "NOM_ENT,NOM_MUN,BP1_1\n"+
		"YUCATAN QUINTANA ROO,X,1\n"+
		"NORTE DE YUCATAN,Y,1\n"+
		"YUCATAN,Z,1\n")

	out, stats, err := FilterResponses(df, yucatan, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Nrow())
	assert.Equal(t, 2, stats.OtherEntity)
}

func TestFilterWithoutCatalogKeepsNumericEntities(t *testing.T) {
	df := canonical(t, "NOM_ENT,NOM_MUN,BP1_1\n31,MERIDA,1\n")

	opts := yucatan
	opts.ResolveCodes = false
	out, _, err := FilterResponses(df, opts, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Nrow())
}

func TestFilterRejectsEmptyTarget(t *testing.T) {
	df := canonical(t, "NOM_ENT,NOM_MUN,BP1_1\nYUCATAN,MERIDA,1\n")
	_, _, err := FilterResponses(df, FilterOptions{ValidCodes: []int{1}}, logger.Discard())
	assert.Error(t, err)
}
