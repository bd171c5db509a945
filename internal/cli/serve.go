package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/archmcp/mcpd/pkg/config"
	"github.com/archmcp/mcpd/pkg/executor"
	"github.com/archmcp/mcpd/pkg/logging"
	"github.com/archmcp/mcpd/pkg/protocol"
	"github.com/archmcp/mcpd/pkg/registry"
	"github.com/archmcp/mcpd/pkg/security"
	"github.com/archmcp/mcpd/pkg/serviced"
	"github.com/archmcp/mcpd/pkg/snapshot"
	"github.com/archmcp/mcpd/pkg/transport"
	"github.com/archmcp/mcpd/pkg/validator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mcpd daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, auditCloser, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer auditCloser()

	exec := executor.New(cfg.Security.AllowedCommands, logger.WithFields(logging.String("component", "executor")))

	snapDir := filepath.Join(cfg.Logging.LogDir, "..", "snapshots")
	svcProvider := serviced.New(exec)
	store := snapshot.New(snapDir, svcProvider, logger.WithFields(logging.String("component", "snapshot")), func(event string, detail map[string]interface{}) {
		logger.Audit(event, detail)
	})

	sink := security.LoggerAuditSink{Logger: logger}
	kernel := security.New(int64(cfg.Security.MaxConcurrentOperations), cfg.Security.AuditAll, sink, logger.WithFields(logging.String("component", "kernel")))

	// Concrete plugins (package management, service control, disk/bootstrap,
	// window-manager IPC, screen capture) are external collaborators this
	// core is built to host, not code this daemon ships itself. The registry
	// still starts with the snapshot catalog registered as a built-in, since
	// that capability lives in this repository rather than an external
	// plugin.
	reg := registry.New(logger.WithFields(logging.String("component", "registry")))
	if err := reg.Register(context.Background(), &snapshotPlugin{store: store}); err != nil {
		return err
	}

	val := validator.New()
	dispatcher := protocol.NewDispatcher(reg, val, kernel, "mcpd", version)
	session := protocol.NewSession()

	srv := transport.NewServer(dispatcher, session, reg, version, logger.WithFields(logging.String("component", "transport")))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		logger.Info("mcpd listening", logging.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited", logging.ErrorField(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	_ = exec.KillAllProcesses(shutdownCtx)
	reg.Cleanup(shutdownCtx)

	return nil
}

func buildLogger(cfg config.LoggingConfig) (logging.Logger, func(), error) {
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, func() {}, err
		}
	}

	appLogPath := filepath.Join(cfg.LogDir, fmt.Sprintf("app-%s.log", time.Now().Format("2006-01-02")))
	auditLogPath := filepath.Join(cfg.LogDir, fmt.Sprintf("audit-%s.log", time.Now().Format("2006-01-02")))

	appFile, err := os.OpenFile(appLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return logging.New(os.Stdout, nil), func() {}, nil
	}
	auditFile, err := os.OpenFile(auditLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return logging.New(appFile, nil), func() { _ = appFile.Close() }, nil
	}

	logger := logging.New(appFile, auditFile)
	logger.SetLevel(levelFromString(cfg.Level))
	closer := func() {
		_ = appFile.Close()
		_ = auditFile.Close()
	}
	return logger, closer, nil
}

func levelFromString(s string) logging.Level {
	switch s {
	case "debug":
		return logging.DebugLevel
	case "warn":
		return logging.WarnLevel
	case "error":
		return logging.ErrorLevel
	default:
		return logging.InfoLevel
	}
}
