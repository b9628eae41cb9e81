package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kbukum/chunkscribe/component"
	"github.com/kbukum/chunkscribe/config"
	"github.com/kbukum/chunkscribe/logger"
)

type testConfig struct {
	config.ServiceConfig
	Workers int
}

func (c *testConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Workers == 0 {
		c.Workers = 1
	}
}

func (c *testConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

type fakeComponent struct {
	name   string
	status component.HealthStatus
	calls  *[]string
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Start(context.Context) error {
	*f.calls = append(*f.calls, "start "+f.name)
	return nil
}

func (f *fakeComponent) Stop(context.Context) error {
	*f.calls = append(*f.calls, "stop "+f.name)
	return nil
}

func (f *fakeComponent) Health(context.Context) component.Health {
	return component.Health{Name: f.name, Status: f.status}
}

func newApp(t *testing.T) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "chunkscribe", Version: "1.0.0"}}
	app, err := NewApp(cfg, WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newApp(t)
	if app.Name != "chunkscribe" || app.Version != "1.0.0" {
		t.Errorf("app = %s %s", app.Name, app.Version)
	}
	if app.Cfg.Workers != 1 || app.Cfg.Environment != "development" {
		t.Errorf("defaults not applied: %+v", app.Cfg)
	}
}

func TestNewApp_Invalid(t *testing.T) {
	if _, err := NewApp(&testConfig{}); err == nil {
		t.Error("expected error for missing name")
	}
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "x"}, Workers: -1}
	if _, err := NewApp(cfg, WithLogger(logger.NewNop())); err == nil {
		t.Error("expected error from embedding config's Validate")
	}
}

func TestRunTask_Lifecycle(t *testing.T) {
	app := newApp(t)
	var calls []string
	_ = app.RegisterComponent(&fakeComponent{name: "database", status: component.StatusHealthy, calls: &calls})
	_ = app.RegisterComponent(&fakeComponent{name: "redis", status: component.StatusHealthy, calls: &calls})
	app.OnStart(func(context.Context) error {
		calls = append(calls, "on start")
		return nil
	})
	app.OnStop(func(context.Context) error {
		calls = append(calls, "on stop")
		return nil
	})

	err := app.RunTask(context.Background(), func(context.Context) error {
		calls = append(calls, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	want := "start database,start redis,on start,task,on stop,stop redis,stop database"
	if got := strings.Join(calls, ","); got != want {
		t.Errorf("calls = %s\nwant    %s", got, want)
	}
}

func TestRunTask_TaskErrorStillShutsDown(t *testing.T) {
	app := newApp(t)
	var calls []string
	_ = app.RegisterComponent(&fakeComponent{name: "database", status: component.StatusHealthy, calls: &calls})

	boom := errors.New("boom")
	err := app.RunTask(context.Background(), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("RunTask = %v, want boom", err)
	}
	if calls[len(calls)-1] != "stop database" {
		t.Errorf("calls = %v", calls)
	}
}

func TestRunTask_StartHookFails(t *testing.T) {
	app := newApp(t)
	var calls []string
	_ = app.RegisterComponent(&fakeComponent{name: "database", status: component.StatusHealthy, calls: &calls})
	app.OnStart(func(context.Context) error { return errors.New("migrations missing") })

	ran := false
	err := app.RunTask(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "migrations missing") {
		t.Errorf("RunTask = %v", err)
	}
	if ran {
		t.Error("task ran after failed start hook")
	}
	if calls[len(calls)-1] != "stop database" {
		t.Errorf("started component not stopped: %v", calls)
	}
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	app := newApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Errorf("Run = %v", err)
	}
}

func TestReadyCheck(t *testing.T) {
	app := newApp(t)
	var calls []string
	_ = app.RegisterComponent(&fakeComponent{name: "database", status: component.StatusHealthy, calls: &calls})
	_ = app.RegisterComponent(&fakeComponent{name: "kafka", status: component.StatusDegraded, calls: &calls})
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Errorf("degraded should pass: %v", err)
	}

	_ = app.RegisterComponent(&fakeComponent{name: "redis", status: component.StatusUnhealthy, calls: &calls})
	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Errorf("ReadyCheck = %v", err)
	}
}
