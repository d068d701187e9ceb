package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaborHourInput_Record(t *testing.T) {
	valid := LaborHourInput{
		ProjectID:    " " + projectID + " ",
		ContractorID: contractor,
		WorkerID:     workerUUID,
		HoursWorked:  7.5,
		WorkDate:     "03/12/2024",
		JobCategory:  " Laborer ",
	}

	t.Run("normalizes and checksums a valid entry", func(t *testing.T) {
		record, err := valid.Record()

		require.NoError(t, err)
		assert.Equal(t, projectID, record.ProjectID)
		assert.Equal(t, "Laborer", record.JobCategory)
		assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), record.WorkDate)
		assert.Equal(t, RecordChecksum(record), record.CheckSum)
	})

	t.Run("rejects an unparseable date", func(t *testing.T) {
		in := valid
		in.WorkDate = "yesterday"

		_, err := in.Record()
		assert.ErrorContains(t, err, "invalid work_date")
	})

	t.Run("rejects hours over a day", func(t *testing.T) {
		in := valid
		in.HoursWorked = 25

		_, err := in.Record()
		assert.Error(t, err)
	})

	t.Run("rejects a worker id that is not a uuid", func(t *testing.T) {
		in := valid
		in.WorkerID = "worker-7"

		_, err := in.Record()
		assert.Error(t, err)
	})
}
