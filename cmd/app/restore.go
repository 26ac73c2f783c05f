package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/starford/clueword/internal/models"
	"github.com/starford/clueword/internal/storage"
	"github.com/starford/clueword/internal/waveform"
	"github.com/starford/clueword/internal/workbench"
)

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Load a session into a headless workbench and rebuild its regions",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "export",
				Usage: "Also export the restored session to this archive (relative to exports.dir)",
			},
		},
		Action: restoreSession,
	}
}

func restoreSession(ctx context.Context, cmd *cli.Command) error {
	id, err := sessionIDArg(cmd)
	if err != nil {
		return err
	}
	cc, err := newClientContext(cmd)
	if err != nil {
		return err
	}

	wb := workbench.New(waveform.NewHeadless(), waveform.NewHeadless(), cc.client,
		workbench.WithAudioSource(cc.client),
		workbench.WithExporter(cc.client),
		workbench.WithLogger(cc.logger),
		workbench.WithAutoSaveDelay(cc.cfg.Client.AutosaveDelay),
	)
	defer wb.Close()

	report, err := wb.Load(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cc.out, "Session %d %q\n", report.SessionID, report.SessionName)
	fmt.Fprint(cc.out, renderTable(
		[]string{"Track", "Audio", "Annotations", "Rebuilt", "Skipped", "Status"},
		buildReportRows(report, wb),
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))

	name := cmd.String("export")
	if name == "" {
		return nil
	}
	archive, err := storage.NewFS(cc.cfg.Exports.Dir)
	if err != nil {
		return err
	}
	var written int64
	err = archive.WriteWith(name, func(w io.Writer) error {
		n, err := wb.Export(ctx, w)
		written = n
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cc.out, "Exported %d bytes to %s\n", written, name)
	return nil
}

func buildReportRows(report *workbench.LoadReport, wb *workbench.Workbench) [][]string {
	rows := make([][]string, 0, len(models.Tracks))
	for _, t := range models.Tracks {
		count := strconv.Itoa(len(wb.Annotations(t)))
		tr, ok := report.Tracks[t]
		if !ok {
			rows = append(rows, []string{string(t), "-", count, "0", "0", "no audio"})
			continue
		}
		status := "ok"
		switch {
		case tr.Err != nil:
			status = tr.Err.Error()
		case tr.Stale:
			status = "stale"
		}
		rows = append(rows, []string{
			string(t),
			tr.AudioURL,
			count,
			strconv.Itoa(tr.Reconstructed),
			strconv.Itoa(tr.Skipped),
			status,
		})
	}
	return rows
}

func exportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "exports",
		Usage: "Manage export archives in exports.dir",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List export archives",
				Action: listExports,
			},
			{
				Name:      "delete",
				Usage:     "Delete an export archive",
				ArgsUsage: "<path>",
				Action:    deleteExport,
			},
		},
	}
}

func openExports(cmd *cli.Command) (*clientContext, *storage.FS, error) {
	cc, err := newClientContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	archive, err := storage.NewFS(cc.cfg.Exports.Dir)
	if err != nil {
		return nil, nil, err
	}
	return cc, archive, nil
}

func listExports(_ context.Context, cmd *cli.Command) error {
	cc, archive, err := openExports(cmd)
	if err != nil {
		return err
	}
	entries, err := archive.List("", ".zip")
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cc.out, "No exports")
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Path,
			strconv.FormatInt(e.Size, 10),
			e.Checksum[:12],
			e.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Fprint(cc.out, renderTable(
		[]string{"Path", "Bytes", "SHA-256", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
	))
	return nil
}

func deleteExport(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("archive path is required")
	}
	cc, archive, err := openExports(cmd)
	if err != nil {
		return err
	}
	if err := archive.Delete(path); err != nil {
		return err
	}
	fmt.Fprintf(cc.out, "Deleted %s\n", path)
	return nil
}
