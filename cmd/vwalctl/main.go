// Command vwalctl is an operator CLI for inspecting a vector WAL buffer's
// on-disk state: segment listing, single-segment record dumps, and
// cursor/size statistics, without starting the storage engine.
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/vwal-io/vwal/internal/walctl"
	"github.com/vwal-io/vwal/pkg/walbuf"
)

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Value:   "table",
	Usage:   "Output format: table, json",
}

var walDirFlag = &cli.StringFlag{
	Name:     "wal-dir",
	Aliases:  []string{"w"},
	Required: true,
	Usage:    "Path to the WAL directory",
}

func getFormatter(c *cli.Context) (walctl.Formatter, error) {
	format := c.String("format")
	if format != "table" && format != "json" {
		return nil, fmt.Errorf("invalid format %q: must be 'table' or 'json'", format)
	}
	return walctl.NewFormatter(walctl.Format(format)), nil
}

func main() {
	app := &cli.App{
		Name:    "vwalctl",
		Usage:   "vwal control CLI",
		Version: "0.1.0",
		Before: func(c *cli.Context) error {
			if !c.Bool("quiet") {
				printBanner()
			}
			return nil
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "quiet", Usage: "Suppress the startup banner"},
		},
		Commands: []*cli.Command{
			walCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func walCommand() *cli.Command {
	return &cli.Command{
		Name:  "wal",
		Usage: "WAL inspection commands",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all WAL segment files",
				Flags:  []cli.Flag{walDirFlag, formatFlag},
				Action: walListAction,
			},
			{
				Name:  "inspect",
				Usage: "Decode and list every record in one WAL segment",
				Flags: []cli.Flag{
					walDirFlag,
					&cli.UintFlag{
						Name:     "file-no",
						Aliases:  []string{"n"},
						Required: true,
						Usage:    "Segment file number to inspect",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum records to decode (0 = unlimited)",
					},
					formatFlag,
				},
				Action: walInspectAction,
			},
			{
				Name:   "stats",
				Usage:  "Show buffer size and cursor statistics",
				Flags:  []cli.Flag{walDirFlag, formatFlag},
				Action: walStatsAction,
			},
			{
				Name:  "tail",
				Usage: "Stream decoded records after a given LSN",
				Flags: []cli.Flag{
					walDirFlag,
					&cli.Uint64Flag{
						Name:     "after-lsn",
						Aliases:  []string{"a"},
						Required: true,
						Usage:    "Replay records after this LSN (as returned by 'wal stats')",
					},
					formatFlag,
				},
				Action: walTailAction,
			},
		},
	}
}

func walListAction(c *cli.Context) error {
	formatter, err := getFormatter(c)
	if err != nil {
		return err
	}

	segments, err := walctl.ListSegments(c.String("wal-dir"))
	if err != nil {
		return err
	}

	return formatter.WriteSegmentList(os.Stdout, segments)
}

func walInspectAction(c *cli.Context) error {
	formatter, err := getFormatter(c)
	if err != nil {
		return err
	}

	fileNoVal := c.Uint("file-no")
	if fileNoVal > math.MaxUint32 {
		return fmt.Errorf("file-no %d exceeds maximum value %d", fileNoVal, uint32(math.MaxUint32))
	}

	records, err := walctl.InspectSegment(c.String("wal-dir"), uint32(fileNoVal), c.Int("limit"))
	if err != nil {
		return err
	}

	return formatter.WriteRecords(os.Stdout, records)
}

func walStatsAction(c *cli.Context) error {
	formatter, err := getFormatter(c)
	if err != nil {
		return err
	}

	dir := c.String("wal-dir")
	buf, _, err := openReadOnlyBuffer(dir, 0)
	if err != nil {
		return err
	}
	defer buf.Close()

	stats, err := walctl.GetBufferStats(dir, buf)
	if err != nil {
		return err
	}

	return formatter.WriteBufferStats(os.Stdout, *stats)
}

func walTailAction(c *cli.Context) error {
	formatter, err := getFormatter(c)
	if err != nil {
		return err
	}

	dir := c.String("wal-dir")
	afterLsn := walbuf.LSN(c.Uint64("after-lsn"))

	buf, endLsn, err := openReadOnlyBuffer(dir, afterLsn)
	if err != nil {
		return err
	}
	defer buf.Close()

	var records []walctl.RecordInfo
	for {
		var rec walbuf.LogRecord
		if err := buf.Next(endLsn, &rec); err != nil {
			return fmt.Errorf("tail: %w", err)
		}
		if rec.Type == walbuf.RecordNone {
			break
		}
		records = append(records, walctl.RecordInfo{
			LSN:          uint64(rec.LSN),
			FileNo:       rec.LSN.FileNo(),
			Offset:       rec.LSN.Offset(),
			Type:         rec.Type.String(),
			CollectionID: string(rec.CollectionID),
			PartitionTag: string(rec.PartitionTag),
			NumIDs:       len(rec.IDs),
			DataSize:     len(rec.Data),
		})
	}

	return formatter.WriteRecords(os.Stdout, records)
}

// openReadOnlyBuffer bootstraps a Buffer purely for inspection: the reader
// cursor starts at startLsn and the writer cursor (and therefore the
// recovery end bound) is pinned to the current end of the last segment
// file, mirroring how a lagging applier's recovery bootstrap would see the
// directory at this instant.
func openReadOnlyBuffer(dir string, startLsn walbuf.LSN) (*walbuf.Buffer, walbuf.LSN, error) {
	segments, err := walctl.ListSegments(dir)
	if err != nil {
		return nil, 0, err
	}
	if len(segments) == 0 {
		return nil, 0, fmt.Errorf("no wal segments found under %s", dir)
	}

	last := segments[len(segments)-1]
	endLsn := walbuf.PackLSN(last.FileNo, uint32(last.Size))

	buf := walbuf.NewBuffer(dir, uint32(last.Size))
	if err := buf.Init(startLsn, endLsn); err != nil {
		return nil, 0, fmt.Errorf("open wal: %w", err)
	}
	return buf, endLsn, nil
}
