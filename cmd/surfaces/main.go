// Command-line interface for surface documents: validation, conversion, geometry
// queries, and the surfaces HTTP server.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
	"github.com/hokaccha/go-prettyjson"

	"github.com/janelia-flyem/surfaces/dvid"
	"github.com/janelia-flyem/surfaces/server"
	"github.com/janelia-flyem/surfaces/surface"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Disable colored output of JSON.
	noColor = flag.Bool("nocolor", false, "")
)

const helpMessage = `
surfaces reads, checks, converts, and queries segmentation surface documents

Usage: surfaces [options] <command>

      -nocolor    (flag)    Don't colorize JSON output.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Surface documents are JSON lists of surfaces or JSON export envelopes.  Files ending
in .mpk are binary exports, and files ending in .dvid are compressed containers whose
inner format is given by the rest of the name, e.g., "cells.mpk.dvid".

Commands:

	validate <file> [workers=N]
	info     <file>
	show     <file>
	classify <file> point=x,y,z [index=0]
	crossing <file> axis=x|y|z point=x,y,z [index=0] [min=..] [max=..]
	convert  <input file> <output file> [compress=zstd]
	token    <config.toml> <user>
	serve    <config.toml>
`

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() { fmt.Print(helpMessage) }
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *runVerbose {
		dvid.Verbose = true
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	command := dvid.Command(flag.Args())
	if err := DoCommand(command); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// DoCommand serves as a switchboard for commands.
func DoCommand(cmd dvid.Command) error {
	switch cmd.Name() {
	case "validate":
		return DoValidate(cmd)
	case "info":
		return DoInfo(cmd)
	case "show":
		return DoShow(cmd)
	case "classify":
		return DoClassify(cmd)
	case "crossing":
		return DoCrossing(cmd)
	case "convert":
		return DoConvert(cmd)
	case "token":
		return DoToken(cmd)
	case "serve":
		return DoServe(cmd)
	default:
		return fmt.Errorf("unknown command %q, try 'surfaces help'", cmd.Name())
	}
}

// readExport reads a surface document, choosing the decoder from the file name.
func readExport(filename string, workers int) (*surface.Export, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	name := filename
	if filepath.Ext(name) == ".dvid" {
		if data, _, err = dvid.DeserializeData(data, true); err != nil {
			return nil, fmt.Errorf("bad container %q: %v", filename, err)
		}
		name = strings.TrimSuffix(name, ".dvid")
	}
	timedLog := dvid.NewTimeLog()
	var exp *surface.Export
	if filepath.Ext(name) == ".mpk" {
		exp, err = surface.UnmarshalBinaryExport(data)
	} else {
		exp, err = surface.UnmarshalDocumentContext(context.Background(), data, workers)
	}
	if err != nil {
		return nil, err
	}
	timedLog.Debugf("Read %d surfaces from %s (%s)", len(exp.Surfaces), filename, humanize.Bytes(uint64(len(data))))
	return exp, nil
}

// writeExport writes a surface document, choosing the encoder from the file name.
func writeExport(filename string, exp *surface.Export, compress dvid.Compression) error {
	name := filename
	container := filepath.Ext(name) == ".dvid"
	if container {
		name = strings.TrimSuffix(name, ".dvid")
	} else if compress != dvid.Uncompressed {
		return fmt.Errorf("compressed output %q must end in .dvid", filename)
	}
	var data []byte
	var err error
	if filepath.Ext(name) == ".mpk" {
		data, err = surface.MarshalBinaryExport(exp)
	} else {
		data, err = surface.MarshalExportIndent(exp, "", "  ")
	}
	if err != nil {
		return err
	}
	if container {
		if data, err = dvid.SerializeData(data, compress, dvid.CRC32); err != nil {
			return err
		}
	}
	return os.WriteFile(filename, data, 0644)
}

func fileArg(cmd dvid.Command) (string, error) {
	var filename string
	cmd.CommandArgs(&filename)
	if filename == "" {
		return "", fmt.Errorf("%s requires a surface document file", cmd.Name())
	}
	return filename, nil
}

// selectSurface reads the file argument and returns the surface given by index=N.
func selectSurface(cmd dvid.Command) (*surface.Surface, error) {
	filename, err := fileArg(cmd)
	if err != nil {
		return nil, err
	}
	i, err := cmd.IntParameter(dvid.KeyIndex, 0)
	if err != nil {
		return nil, err
	}
	exp, err := readExport(filename, 0)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(exp.Surfaces) {
		return nil, fmt.Errorf("index %d not in [0, %d)", i, len(exp.Surfaces))
	}
	return exp.Surfaces[i], nil
}

func pointArg(cmd dvid.Command) (dvid.Vector3d, error) {
	str, found := cmd.Parameter(dvid.KeyPoint)
	if !found {
		return dvid.Vector3d{}, fmt.Errorf("%s requires point=x,y,z", cmd.Name())
	}
	return dvid.StringToVector3d(str, ",")
}

func jsonFormatter() *prettyjson.Formatter {
	f := prettyjson.NewFormatter()
	f.DisabledColor = *noColor
	return f
}

func printJSON(v interface{}) error {
	data, err := jsonFormatter().Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func DoValidate(cmd dvid.Command) error {
	filename, err := fileArg(cmd)
	if err != nil {
		return err
	}
	workers, err := cmd.IntParameter(dvid.KeyWorkers, 0)
	if err != nil {
		return err
	}
	exp, err := readExport(filename, workers)
	if err != nil {
		return fmt.Errorf("%s is invalid: %v", filename, err)
	}
	fmt.Printf("%s is valid: %d surfaces\n", filename, len(exp.Surfaces))
	return nil
}

func DoInfo(cmd dvid.Command) error {
	filename, err := fileArg(cmd)
	if err != nil {
		return err
	}
	exp, err := readExport(filename, 0)
	if err != nil {
		return err
	}
	fmt.Printf("Version: %s\n", exp.Version)
	if md := exp.Metadata; md != (surface.Metadata{}) {
		fmt.Printf("Source image: %s\nSource surface: %s\nSoftware: %s\nExported: %s\n",
			md.SourceImage, md.SourceSurface, md.SourceSoftware, md.ExportDateTime)
	}
	fmt.Printf("Surfaces: %d (%s in memory)\n", len(exp.Surfaces), humanize.Bytes(uint64(size.Of(exp.Surfaces))))
	for i, s := range exp.Surfaces {
		fmt.Printf("  %d: %s\n", i, s)
	}
	return nil
}

func DoShow(cmd dvid.Command) error {
	filename, err := fileArg(cmd)
	if err != nil {
		return err
	}
	exp, err := readExport(filename, 0)
	if err != nil {
		return err
	}
	data, err := surface.MarshalExport(exp)
	if err != nil {
		return err
	}
	out, err := jsonFormatter().Format(data)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func DoClassify(cmd dvid.Command) error {
	s, err := selectSurface(cmd)
	if err != nil {
		return err
	}
	pt, err := pointArg(cmd)
	if err != nil {
		return err
	}
	class, err := s.Classify(pt)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"point": pt, "classification": class})
}

func DoCrossing(cmd dvid.Command) error {
	s, err := selectSurface(cmd)
	if err != nil {
		return err
	}
	axisStr, _ := cmd.Parameter(dvid.KeyAxis)
	axis, err := surface.ParseAxis(axisStr)
	if err != nil {
		return err
	}
	pt, err := pointArg(cmd)
	if err != nil {
		return err
	}
	span := s.Range(axis)
	for i, key := range []string{dvid.KeyMin, dvid.KeyMax} {
		v, found, err := cmd.FloatParameter(key)
		if err != nil {
			return err
		}
		if found {
			span[i] = v
		}
	}
	coord, found, err := s.BoundaryCrossing(axis, pt, span)
	if err != nil {
		return err
	}
	resp := map[string]interface{}{"axis": axis.String(), "span": span, "found": found}
	if found {
		resp["crossing"] = coord
	}
	return printJSON(resp)
}

func DoConvert(cmd dvid.Command) error {
	var input, output string
	cmd.CommandArgs(&input, &output)
	if input == "" || output == "" {
		return fmt.Errorf("convert requires input and output files")
	}
	compress := dvid.Uncompressed
	if str, found := cmd.Parameter(dvid.KeyCompress); found {
		var err error
		if compress, err = dvid.ParseCompression(str); err != nil {
			return err
		}
	} else if filepath.Ext(output) == ".dvid" {
		compress = dvid.Zstd
	}
	exp, err := readExport(input, 0)
	if err != nil {
		return err
	}
	if err := writeExport(output, exp, compress); err != nil {
		return err
	}
	fmt.Printf("Converted %d surfaces from %s to %s\n", len(exp.Surfaces), input, output)
	return nil
}

func DoToken(cmd dvid.Command) error {
	var configPath, user string
	cmd.CommandArgs(&configPath, &user)
	if configPath == "" || user == "" {
		return fmt.Errorf("token requires a config file and user name")
	}
	if err := server.LoadConfig(configPath); err != nil {
		return err
	}
	token, err := server.GenerateJWT(user)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// DoServe opens the configured store and serves the HTTP API until interrupted.
func DoServe(cmd dvid.Command) error {
	var configPath string
	cmd.CommandArgs(&configPath)
	if configPath == "" {
		return fmt.Errorf("serve requires a TOML config file")
	}
	if err := server.LoadConfig(configPath); err != nil {
		return err
	}
	logConfig := server.LogConfig()
	if err := logConfig.SetLogger(); err != nil {
		return err
	}
	defer dvid.Shutdown()

	if err := server.Initialize(); err != nil {
		return fmt.Errorf("unable to initialize server: %v", err)
	}
	defer server.Shutdown()

	// Capture ctrl+c and other interrupts.  Then handle graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("web server stopped: %v", err)
	}
	dvid.Infof("Stop signal captured.  Shut down server.\n")
	return nil
}
