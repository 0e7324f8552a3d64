package timeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/state"
)

func TestStageExtractsISODateAndClassifiesTransaction(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.ExtractedText["d1"] = "On 2021-05-14 a wire transfer payment was made to the account."

	require.NoError(t, Stage(context.Background(), s))

	require.Len(t, s.Timeline, 1)
	ev := s.Timeline[0]
	assert.Equal(t, "2021-05-14", ev.Date)
	assert.Equal(t, state.EventTransaction, ev.Type)
	require.NotNil(t, ev.Timestamp)
	assert.Equal(t, 2021, ev.Timestamp.Year())
}

func TestStageExtractsSlashAndLongPortugueseDates(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.ExtractedText["d1"] = "Reunião marcada para 15/03/2020. Conforme o contrato assinado em 10 de janeiro de 2021."

	require.NoError(t, Stage(context.Background(), s))
	require.Len(t, s.Timeline, 2)

	dates := []string{s.Timeline[0].Date, s.Timeline[1].Date}
	assert.Contains(t, dates, "2020-03-15")
	assert.Contains(t, dates, "2021-01-10")
}

func TestStageSortsEventsChronologically(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.ExtractedText["d1"] = "Second event on 2022-06-01. First event on 2021-01-01."

	require.NoError(t, Stage(context.Background(), s))
	require.Len(t, s.Timeline, 2)
	assert.True(t, s.Timeline[0].Timestamp.Before(*s.Timeline[1].Timestamp))
}

func TestDetectDuplicateDatesFlagsSharedDay(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.ExtractedText["d1"] = "Payment on 2021-05-14. Another meeting on 2021-05-14 as well."

	require.NoError(t, Stage(context.Background(), s))
	require.NotEmpty(t, s.TemporalAnomalies)
	assert.Equal(t, "possible_duplicate_date", s.TemporalAnomalies[0].Category)
}
