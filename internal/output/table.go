package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/vburojevic/dbgl/internal/domain"
)

// WriteRecordTable renders persisted sessions as a table
func WriteRecordTable(w io.Writer, records []domain.PersistedRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, MutedStyle.Render("No persisted debug sessions"))
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Port", "IP", "Workspace", "Saved")
	for _, r := range records {
		if err := table.Append([]string{
			strconv.Itoa(r.Port),
			r.IP,
			r.WorkspacePath,
			r.SavedTime().Local().Format(time.DateTime),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// WriteProbedSessionTable renders probed sessions with their status
func WriteProbedSessionTable(w io.Writer, sessions []*domain.Session) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, MutedStyle.Render("No persisted debug sessions"))
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Port", "IP", "Workspace", "Saved", "Status")
	for _, s := range sessions {
		status := MutedStyle.Render(string(s.Status))
		if s.Status == domain.StatusConnected {
			status = SuccessStyle.Render(string(s.Status))
		}
		if err := table.Append([]string{
			strconv.Itoa(s.DebugPort),
			s.DebugIP,
			s.WorkspacePath,
			s.CreatedAt.Local().Format(time.DateTime),
			status,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
