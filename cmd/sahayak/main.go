package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"Sahayak/internal/app"
	"Sahayak/internal/config"
	"Sahayak/internal/logging"
	"Sahayak/internal/usecase"
)

const usage = `usage: sahayak <command> [flags]

commands:
  upload   -file PATH [-title T] [-subject S] [-class C] [-deadline DATE]
  status   -id ID
  publish  -id ID -subject S -class C -due DATE [-teacher ID]
  resume   re-poll jobs left in processing
  watch    resume jobs periodically until interrupted
  jobs     list the local job ledger
  submit   -assignment ID -file PATH
  result   -id ID
  content  -file PATH [-teacher ID]
  sandbox  serve a local stand-in backend
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.AddSource})

	if err := run(ctx, cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, cmd string, args []string) error {
	if cmd == "sandbox" {
		return app.RunSandbox(ctx, cfg.Sandbox, logger)
	}
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		fmt.Print(usage)
		return nil
	}

	application, err := app.New(ctx, cfg, logger, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			logger.Warn("close", "error", cerr)
		}
	}()

	switch cmd {
	case "upload":
		return runUpload(ctx, application, args)
	case "status":
		return runStatus(ctx, application, args)
	case "publish":
		return runPublish(ctx, application, args)
	case "resume":
		results, err := application.Assignments().Resume(ctx)
		for _, r := range results {
			fmt.Printf("%s\t%s\t%d questions\n", r.AssignmentID, r.State, len(r.Questions))
		}
		return err
	case "watch":
		return application.Watch(ctx)
	case "jobs":
		return runJobs(ctx, application)
	case "submit":
		return runSubmit(ctx, application, args)
	case "result":
		return runResult(ctx, application, args)
	case "content":
		return runContent(ctx, application, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runUpload(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	file := fs.String("file", "", "assignment document (.pdf, .doc, .docx)")
	title := fs.String("title", "", "assignment title (defaults to the file name)")
	subject := fs.String("subject", "", "subject")
	class := fs.String("class", "", "class name")
	deadline := fs.String("deadline", "", "deadline, YYYY-MM-DD or RFC3339 (defaults to one week)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read %s: %w", *file, err)
	}
	var due time.Time
	if *deadline != "" {
		if due, err = parseDate(*deadline); err != nil {
			return err
		}
	}

	res, err := application.Assignments().Upload(ctx, usecase.UploadRequest{
		Filename:  filepath.Base(*file),
		Content:   content,
		Title:     *title,
		Subject:   *subject,
		ClassName: *class,
		Deadline:  due,
	})
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, res)
}

func runStatus(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	id := fs.String("id", "", "assignment id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}

	job, err := application.Assignments().Status(ctx, *id)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, job)
}

func runPublish(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	id := fs.String("id", "", "assignment id")
	subject := fs.String("subject", "", "subject")
	class := fs.String("class", "", "class name, looked up in the roster")
	due := fs.String("due", "", "due date, YYYY-MM-DD or RFC3339")
	teacher := fs.String("teacher", "", "teacher id (defaults to the signed-in user)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var dueDate time.Time
	if *due != "" {
		var err error
		if dueDate, err = parseDate(*due); err != nil {
			return err
		}
	}

	res, err := application.Assignments().Publish(ctx, usecase.PublishRequest{
		AssignmentID: *id,
		Subject:      *subject,
		ClassName:    *class,
		DueDate:      dueDate,
		TeacherID:    *teacher,
	})
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, res)
}

func runJobs(ctx context.Context, application *app.Application) error {
	entries, err := application.Ledger().All(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n", e.JobID, e.Status, e.CreatedAt.Format(time.RFC3339), e.Filename, e.ErrorMessage)
	}
	return nil
}

func runSubmit(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	assignment := fs.String("assignment", "", "assignment id")
	file := fs.String("file", "", "answer sheet (PDF or Word)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read %s: %w", *file, err)
	}
	sub, err := application.Students().Submit(ctx, usecase.WorkRequest{
		AssignmentID: *assignment,
		Filename:     filepath.Base(*file),
		Content:      data,
	})
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, sub)
}

func runResult(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("result", flag.ContinueOnError)
	id := fs.String("id", "", "submission id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}

	sub, err := application.Students().Result(ctx, *id)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, sub)
}

func runContent(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("content", flag.ContinueOnError)
	file := fs.String("file", "", "file to store")
	teacher := fs.String("teacher", "", "owning teacher id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read %s: %w", *file, err)
	}
	key, err := application.Content().UploadContent(ctx, *teacher, filepath.Base(*file), data)
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", value)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
