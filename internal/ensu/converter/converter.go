package converter

import (
	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/farxc/ensu_insecurity/internal/ensu/utils"
	"github.com/go-gota/gota/dataframe"
)

// DfRowToResponseRecord reads a row of a canonical dataframe. The code is 0 when it
// cannot be coerced; filtered frames never contain such rows.
func DfRowToResponseRecord(df dataframe.DataFrame, i int) types.ResponseRecord {
	code, _ := utils.ParseCode(utils.GetStr(types.ColResponseCode, i, &df))
	return types.ResponseRecord{
		Entity:       utils.GetStr(types.ColEntity, i, &df),
		Municipality: utils.GetStr(types.ColMunicipality, i, &df),
		Code:         code,
	}
}

// DfToResponseRecords converts every row.
func DfToResponseRecords(df dataframe.DataFrame) []types.ResponseRecord {
	records := make([]types.ResponseRecord, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		records = append(records, DfRowToResponseRecord(df, i))
	}
	return records
}
