package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/dbgl/internal/domain"
	"github.com/vburojevic/dbgl/internal/filter"
	"github.com/vburojevic/dbgl/internal/output"
)

// SessionsCmd groups persisted session commands
type SessionsCmd struct {
	List  SessionsListCmd  `cmd:"" default:"1" help:"List persisted debug sessions"`
	Rm    SessionsRmCmd    `cmd:"" help:"Forget the persisted session on a port"`
	Clear SessionsClearCmd `cmd:"" help:"Forget every persisted session"`
}

// SessionsListCmd lists persisted sessions, newest first
type SessionsListCmd struct {
	Where []string `short:"W" help:"Filter: field op value (ops: = != ~ !~ >= <= ^ $; fields: port, ip, workspace, saved_at, status with --probe)"`
	Probe bool     `help:"Probe each session's debug port and report it as connected or disconnected"`
}

// Run executes the list command
func (c *SessionsListCmd) Run(globals *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return c.run(ctx, globals)
}

func (c *SessionsListCmd) run(ctx context.Context, globals *Globals) error {
	f, err := filter.NewWhereFilter(c.Where)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_WHERE", err.Error(), "example: --where 'workspace~api' --where 'port>=50000'")
	}
	if f.Uses("status") && !c.Probe {
		return outputErrorCommon(globals, "INVALID_WHERE", "status is only known after probing", "add --probe")
	}

	st, err := openStore(globals)
	if err != nil {
		return outputErrorCommon(globals, "STORE_UNAVAILABLE", err.Error())
	}
	records, err := st.List()
	if err != nil {
		return outputErrorCommon(globals, "STORE_READ_FAILED", err.Error(), fmt.Sprintf("delete %s to start over", st.Path()))
	}
	if c.Probe {
		return writeProbedSessions(globals, f.Sessions(probeRecords(ctx, globals, records)))
	}
	records = f.Records(records)

	if globals.Format == "ndjson" {
		w := output.NewNDJSONWriter(globals.Stdout)
		for _, r := range records {
			if err := w.WriteRecord(r); err != nil {
				return err
			}
		}
		return nil
	}
	return output.WriteRecordTable(globals.Stdout, records)
}

// probeRecords checks every record's debug port concurrently
func probeRecords(ctx context.Context, globals *Globals, records []domain.PersistedRecord) []*domain.Session {
	p := newProber(globals, globals.clockOrReal())
	sessions := make([]*domain.Session, len(records))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range records {
		g.Go(func() error {
			s := domain.RestoredSession(r)
			if !p.ProbeOnce(gctx, r.IP, r.Port, p.ConnectTimeout()) {
				s.Status = domain.StatusDisconnected
			}
			sessions[i] = s
			return nil
		})
	}
	_ = g.Wait()
	return sessions
}

func writeProbedSessions(globals *Globals, sessions []*domain.Session) error {
	if globals.Format == "ndjson" {
		w := output.NewNDJSONWriter(globals.Stdout)
		for _, s := range sessions {
			if err := w.WriteProbedSession(s); err != nil {
				return err
			}
		}
		return nil
	}
	return output.WriteProbedSessionTable(globals.Stdout, sessions)
}

// SessionsRmCmd removes one persisted session
type SessionsRmCmd struct {
	Port int `required:"" help:"Debug port of the session to forget"`
}

// Run executes the rm command
func (c *SessionsRmCmd) Run(globals *Globals) error {
	st, err := openStore(globals)
	if err != nil {
		return outputErrorCommon(globals, "STORE_UNAVAILABLE", err.Error())
	}
	if err := st.RemoveByPort(c.Port); err != nil {
		return outputErrorCommon(globals, "STORE_WRITE_FAILED", err.Error())
	}
	return writeStoreInfo(globals, fmt.Sprintf("removed persisted session on port %d", c.Port), c.Port)
}

// SessionsClearCmd empties the session store
type SessionsClearCmd struct{}

// Run executes the clear command
func (c *SessionsClearCmd) Run(globals *Globals) error {
	st, err := openStore(globals)
	if err != nil {
		return outputErrorCommon(globals, "STORE_UNAVAILABLE", err.Error())
	}
	if err := st.ClearAll(); err != nil {
		return outputErrorCommon(globals, "STORE_WRITE_FAILED", err.Error())
	}
	return writeStoreInfo(globals, "cleared persisted sessions", 0)
}

func writeStoreInfo(globals *Globals, message string, port int) error {
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteInfo(message, port, 0)
	}
	if globals.Quiet {
		return nil
	}
	return output.NewTextWriter(globals.Stdout).WriteInfo(message)
}
