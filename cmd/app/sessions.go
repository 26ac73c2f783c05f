package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/starford/clueword/internal"
	"github.com/starford/clueword/internal/models"
	"github.com/starford/clueword/internal/sessionclient"
)

// clientContext bundles what the client-side commands need.
type clientContext struct {
	cfg    *internal.Config
	client *sessionclient.Client
	logger *slog.Logger
	out    io.Writer
}

func newClientContext(cmd *cli.Command) (*clientContext, error) {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.Client.Timeout}
	return &clientContext{
		cfg:    cfg,
		client: sessionclient.New(cfg.Client.BaseURL, cfg.Client.Token, httpClient),
		logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel})),
		out:    cmd.Root().Writer,
	}, nil
}

func sessionIDArg(cmd *cli.Command) (int64, error) {
	raw := cmd.Args().First()
	if raw == "" {
		return 0, fmt.Errorf("session id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", raw)
	}
	return id, nil
}

func sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect sessions stored on a running server",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List stored sessions",
				Action: listSessions,
			},
			{
				Name:      "show",
				Usage:     "Print one session as JSON, or one track's annotations as a table",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "track",
						Usage: "question or control",
					},
				},
				Action: showSession,
			},
			{
				Name:      "delete",
				Usage:     "Delete a stored session",
				ArgsUsage: "<id>",
				Action:    deleteSession,
			},
		},
	}
}

func listSessions(ctx context.Context, cmd *cli.Command) error {
	cc, err := newClientContext(cmd)
	if err != nil {
		return err
	}
	items, err := cc.client.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(cc.out, "No sessions")
		return nil
	}
	fmt.Fprint(cc.out, renderTable(
		[]string{"ID", "Name", "Case", "Speaker", "Question", "Control", "Updated"},
		buildSessionRows(items),
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	return nil
}

func buildSessionRows(items []models.SessionSummary) [][]string {
	rows := make([][]string, 0, len(items))
	for _, s := range items {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.SessionName,
			s.CaseNumber,
			s.SpeakerName,
			trackCell(s.HasQuestionAudio, s.QuestionCount),
			trackCell(s.HasControlAudio, s.ControlCount),
			s.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

// trackCell shows the annotation count, marked when the track has no audio.
func trackCell(hasAudio bool, count int) string {
	if !hasAudio {
		return fmt.Sprintf("%d (no audio)", count)
	}
	return strconv.Itoa(count)
}

func showSession(ctx context.Context, cmd *cli.Command) error {
	id, err := sessionIDArg(cmd)
	if err != nil {
		return err
	}
	cc, err := newClientContext(cmd)
	if err != nil {
		return err
	}
	var track models.Track
	if raw := cmd.String("track"); raw != "" {
		if track, err = models.ParseTrack(raw); err != nil {
			return err
		}
	}
	sess, err := cc.client.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if track != "" {
		segs := sess.Annotations.For(track)
		if len(segs) == 0 {
			fmt.Fprintf(cc.out, "No %s annotations\n", track)
			return nil
		}
		fmt.Fprint(cc.out, renderTable(
			[]string{"#", "Label", "Start", "End"},
			buildSegmentRows(segs),
			[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
		))
		return nil
	}
	enc := json.NewEncoder(cc.out)
	enc.SetIndent("", "  ")
	return enc.Encode(sess)
}

func buildSegmentRows(segs []models.Segment) [][]string {
	rows := make([][]string, 0, len(segs))
	for i, seg := range segs {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			seg.Label,
			strconv.FormatFloat(seg.Start, 'f', 3, 64),
			strconv.FormatFloat(seg.End, 'f', 3, 64),
		})
	}
	return rows
}

func deleteSession(ctx context.Context, cmd *cli.Command) error {
	id, err := sessionIDArg(cmd)
	if err != nil {
		return err
	}
	cc, err := newClientContext(cmd)
	if err != nil {
		return err
	}
	if err := cc.client.DeleteSession(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cc.out, "Session %d deleted\n", id)
	return nil
}
