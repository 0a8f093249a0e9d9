package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVisit(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantDate string
		wantTime string
		wantErr  bool
	}{
		{
			name:     "embedded in sentence",
			text:     "Ваш визит назначен на 13.05.2025 в 09:30, окно 4.",
			wantDate: "13.05.2025",
			wantTime: "09:30",
		},
		{
			name:     "tokens only",
			text:     "13.05.2025 09:30",
			wantDate: "13.05.2025",
			wantTime: "09:30",
		},
		{
			name:     "date before unrelated digits",
			text:     "запись подтверждена: 01.12.2026, явка к 14:05 (заявка 90210)",
			wantDate: "01.12.2026",
			wantTime: "14:05",
		},
		{
			name:    "no time token",
			text:    "визит 13.05.2025",
			wantErr: true,
		},
		{
			name:    "empty",
			text:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, tm, err := ExtractVisit(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDate, date)
			assert.Equal(t, tt.wantTime, tm)
		})
	}
}

func TestExtractRegistration(t *testing.T) {
	text := "Ваша заявка принята. Номер заявки - 84920, Защитный код - X9K2A1. Сохраните их."

	n, code, err := ExtractRegistration(text)
	require.NoError(t, err)
	assert.Equal(t, int64(84920), n)
	assert.Equal(t, "X9K2A1", code)

	_, _, err = ExtractRegistration("Номер заявки - 84920, кода нет")
	assert.Error(t, err)

	_, _, err = ExtractRegistration("nothing useful")
	assert.Error(t, err)
}

func TestOrderValidate(t *testing.T) {
	ok := Order{OrderNumber: 1, SaveCode: "A", CountryID: 41}
	require.NoError(t, ok.Validate())

	assert.Error(t, Order{SaveCode: "A", CountryID: 41}.Validate())
	assert.Error(t, Order{OrderNumber: 1, CountryID: 41}.Validate())
	assert.Error(t, Order{OrderNumber: 1, SaveCode: "A"}.Validate())
}

func TestResolved(t *testing.T) {
	assert.False(t, Order{}.Resolved())
	assert.True(t, Order{TimeForVisit: "13.05.2025 09:30"}.Resolved())
}
