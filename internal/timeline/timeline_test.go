package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesavant42/omnidash/internal/api"
	"github.com/thesavant42/omnidash/internal/models"
)

func rec(ts string) models.CDXRecord {
	return models.CDXRecord{Timestamp: ts, Original: "http://a.com/"}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		records []models.CDXRecord
		want    []models.YearCount
	}{
		{
			name:    "empty",
			records: nil,
			want:    []models.YearCount{},
		},
		{
			name:    "ascending years regardless of input order",
			records: []models.CDXRecord{rec("20210101000000"), rec("20190101000000"), rec("20210601000000"), rec("20200101000000")},
			want: []models.YearCount{
				{Year: "2019", Count: 1},
				{Year: "2020", Count: 1},
				{Year: "2021", Count: 2},
			},
		},
		{
			name:    "short timestamps group under themselves",
			records: []models.CDXRecord{rec("20"), rec("20"), rec("2020")},
			want: []models.YearCount{
				{Year: "20", Count: 2},
				{Year: "2020", Count: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(tt.records))
		})
	}
}

func TestBuildOnMockData(t *testing.T) {
	records := api.MockCDX("a.com")
	counts := Build(records)

	total := 0
	seen := make(map[string]bool)
	for i, c := range counts {
		assert.False(t, seen[c.Year], "duplicate year %s", c.Year)
		seen[c.Year] = true
		if i > 0 {
			assert.Less(t, counts[i-1].Year, c.Year)
		}
		total += c.Count
	}
	assert.Equal(t, len(records), total)
	require.Len(t, counts, 14)
	assert.Equal(t, models.YearCount{Year: "2010", Count: 15}, counts[0])
	assert.Equal(t, models.YearCount{Year: "2023", Count: 5}, counts[13])
}

func TestFilterByYear(t *testing.T) {
	records := []models.CDXRecord{rec("20190101000000"), rec("20200101000000"), rec("20200601000000")}

	assert.Equal(t, records, FilterByYear(records, ""))
	assert.Len(t, FilterByYear(records, "2020"), 2)
	assert.Empty(t, FilterByYear(records, "1999"))

	for _, c := range Build(records) {
		assert.Len(t, FilterByYear(records, c.Year), c.Count)
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[string]string{
		"200": "2xx",
		"301": "3xx",
		"404": "4xx",
		"503": "5xx",
		"-":   "other",
		"":    "other",
		"999": "other",
	}
	for code, want := range tests {
		t.Run(code, func(t *testing.T) {
			assert.Equal(t, want, StatusClass(code))
		})
	}
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)

	got, ok := Latest([]models.CDXRecord{rec("20200101000000"), rec("20230101000000"), rec("20210101000000")})
	require.True(t, ok)
	assert.Equal(t, "20230101000000", got.Timestamp)
}
