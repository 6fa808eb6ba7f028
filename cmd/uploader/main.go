package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/driveingest/internal/client/config"
	"github.com/dmitrijs2005/driveingest/internal/client/uploader"
	"github.com/dmitrijs2005/driveingest/internal/flagx"
)

type uploadFlags struct {
	file string
	opts uploader.Options
}

func parseUploadFlags() uploadFlags {
	var f uploadFlags

	args := flagx.FilterArgs(os.Args[1:], []string{"-f", "-name", "-folder", "-comment", "-sensitive", "-force"})
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	fs.StringVar(&f.file, "f", "", "file to upload")
	fs.StringVar(&f.opts.Name, "name", "", "file name in the drive (defaults to the local name)")
	fs.StringVar(&f.opts.FolderID, "folder", "", "target folder id")
	fs.StringVar(&f.opts.Comment, "comment", "", "file comment")
	fs.BoolVar(&f.opts.IsSensitive, "sensitive", false, "mark the file as sensitive")
	fs.BoolVar(&f.opts.Force, "force", false, "upload even if the same content already exists")
	_ = fs.Parse(args)

	return f
}

func main() {
	cfg := config.LoadConfig()
	f := parseUploadFlags()
	if f.file == "" {
		log.Fatal("no file given, use -f <path>")
	}

	if cfg.Credential == "" {
		cred, err := uploader.PromptCredential(os.Stderr)
		if err != nil {
			log.Fatalf("%v", err)
		}
		cfg.Credential = cred
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := uploader.New(cfg.ServerURL, cfg.Credential, &http.Client{Timeout: cfg.RequestTimeout}, uploader.ProgressWriter())

	file, err := client.Upload(ctx, f.file, f.opts)
	if err != nil {
		log.Fatalf("upload failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file); err != nil {
		log.Fatalf("%v", err)
	}
}
