// Command print-zone prints a stored zone in master file format.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jroosing/pdnsadmin/internal/config"
	"github.com/jroosing/pdnsadmin/internal/database"
	"github.com/jroosing/pdnsadmin/internal/zone"
)

// zoneReader is the database surface used to load a zone.
type zoneReader interface {
	GetDomainIDByName(ctx context.Context, name string) (int64, error)
	GetDomainNameByID(ctx context.Context, id int64) (string, error)
	GetRecordsFromDomainID(ctx context.Context, q database.RecordQuery) ([]database.Record, error)
}

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file (or set PDNSADMIN_CONFIG)")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: print-zone [-config file] <zone name or id>\n")
		os.Exit(2)
	}

	cfg, err := config.Load(config.ResolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	err = printZone(ctx, db, flag.Arg(0), os.Stdout)
	db.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to print zone: %v\n", err)
		os.Exit(1)
	}
}

// printZone writes the zone named (or numbered) by arg to out.
func printZone(ctx context.Context, db zoneReader, arg string, out io.Writer) error {
	var (
		id   int64
		name string
		err  error
	)
	if n, perr := strconv.ParseInt(arg, 10, 64); perr == nil {
		id = n
		name, err = db.GetDomainNameByID(ctx, id)
	} else {
		name = arg
		id, err = db.GetDomainIDByName(ctx, arg)
	}
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("zone %s not found", arg)
	}
	if err != nil {
		return err
	}

	recs, err := db.GetRecordsFromDomainID(ctx, database.RecordQuery{DomainID: id})
	if err != nil {
		return err
	}
	_, err = zone.FromRecords(name, recs).WriteTo(out)
	return err
}
