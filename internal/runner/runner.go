package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"leasesync/internal/config"
	"leasesync/internal/dhcp"
	"leasesync/internal/hosts"
	"leasesync/internal/metrics"
	"leasesync/internal/remote"
	"leasesync/internal/static"
	"leasesync/pkg/models"
	"leasesync/pkg/utils"
)

var (
	// ErrMasterUnreachable is returned when the master export cannot be read
	ErrMasterUnreachable = errors.New("runner: master unreachable")
	// ErrNoReservations is returned when the master export declares no DHCP
	// server and holds no lease
	ErrNoReservations = errors.New("runner: master has no reservations")
	// ErrSlaveUnreachable is reported after all slaves were processed when
	// at least one of them could not be read
	ErrSlaveUnreachable = errors.New("runner: slave unreachable")
)

// Outcome is the overall result of a run
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeWarnings
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeWarnings:
		return "warnings"
	default:
		return "fatal"
	}
}

// MarshalText implements encoding.TextMarshaler
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ExitCode maps the outcome to the process exit status
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSuccess:
		return 0
	case OutcomeWarnings:
		return 2
	default:
		return 1
	}
}

// Planned is a command computed in dry-run mode
type Planned struct {
	Target  string `json:"target"`
	Command string `json:"command"`
}

// Report summarises one run
type Report struct {
	RunID           string              `json:"run_id"`
	Started         time.Time           `json:"started"`
	Finished        time.Time           `json:"finished"`
	DryRun          bool                `json:"dry_run"`
	Outcome         Outcome             `json:"outcome"`
	MissingScopes   map[string][]string `json:"missing_scopes,omitempty"`
	Unreachable     []string            `json:"unreachable,omitempty"`
	Applied         int                 `json:"applied"`
	Failed          int                 `json:"failed"`
	PresenceApplied int                 `json:"presence_applied"`
	PresenceFailed  int                 `json:"presence_failed"`
	Planned         []Planned           `json:"planned,omitempty"`
	Err             error               `json:"-"`
	Error           string              `json:"error,omitempty"`
}

func (r *Report) fail(err error) {
	r.Outcome = OutcomeFatal
	r.Err = err
	r.Error = err.Error()
}

// FailedReport returns the report of a run that could not start, for
// example because the inventory does not load
func FailedReport(err error) Report {
	now := time.Now()
	report := Report{RunID: uuid.NewString(), Started: now, Finished: now}
	report.fail(err)
	metrics.RecordRun(report.Outcome.String(), 0, now)
	return report
}

// Options tune a run
type Options struct {
	// ExportCommand prints the DHCP configuration of a router
	ExportCommand string
	// DryRun computes and logs changes without sending them
	DryRun bool
}

// TrackerFactory returns the tracking service client for a base URL
type TrackerFactory func(baseURL string) hosts.Service

// Runner performs sync runs for one inventory
type Runner struct {
	inventory *config.Inventory
	dialer    remote.Dialer
	trackers  TrackerFactory
	parser    *dhcp.Parser
	opts      Options
	logger    zerolog.Logger
}

// New creates a runner. trackers may be nil when the inventory lists no
// tracking service.
func New(inv *config.Inventory, dialer remote.Dialer, trackers TrackerFactory, opts Options, logger zerolog.Logger) *Runner {
	if opts.ExportCommand == "" {
		opts.ExportCommand = dhcp.ExportCommand
	}
	return &Runner{
		inventory: inv,
		dialer:    dialer,
		trackers:  trackers,
		parser:    dhcp.NewParser(logger),
		opts:      opts,
		logger:    logger,
	}
}

// Run fetches the master reservations, pushes them to every slave and,
// when no DHCP server was missing on a slave, to every tracking service
func (r *Runner) Run(ctx context.Context) (report Report) {
	report = Report{
		RunID:         uuid.NewString(),
		Started:       time.Now(),
		DryRun:        r.opts.DryRun,
		MissingScopes: make(map[string][]string),
	}
	logger := r.logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().
		Str("master", r.inventory.Master.Host).
		Int("slaves", len(r.inventory.Slaves)).
		Bool("dry_run", r.opts.DryRun).
		Msg("Starting sync run")

	defer func() {
		report.Finished = time.Now()
		metrics.RecordRun(report.Outcome.String(), report.Finished.Sub(report.Started), report.Finished)
	}()

	master, err := r.fetch(ctx, logger, r.inventory.Master)
	if err != nil {
		report.fail(fmt.Errorf("%w: %s: %w", ErrMasterUnreachable, r.inventory.Master.Host, err))
		logger.Error().Err(report.Err).Msg("Sync run aborted")
		return report
	}
	if len(master.Scopes) == 0 {
		report.fail(fmt.Errorf("%w: %s", ErrNoReservations, r.inventory.Master.Host))
		logger.Error().Err(report.Err).Msg("Sync run aborted")
		return report
	}
	dumpSet(logger, "Master reservations", r.inventory.Master.Host, master)

	for _, slave := range r.inventory.Slaves {
		r.syncSlave(ctx, logger, slave, master, &report)
	}

	for _, host := range utils.SortedKeys(report.MissingScopes) {
		logger.Warn().
			Str("router", host).
			Strs("scopes", report.MissingScopes[host]).
			Msg("DHCP servers missing on slave, their leases were not synced")
	}
	if len(report.MissingScopes) > 0 {
		report.Outcome = OutcomeWarnings
	}

	switch {
	case len(r.inventory.WatchYourLAN) == 0 || r.trackers == nil:
	case report.Outcome != OutcomeSuccess:
		logger.Warn().Msg("Skipping tracking service sync because of warnings")
	default:
		for _, tracker := range r.inventory.WatchYourLAN {
			r.syncTracker(ctx, logger, tracker.URL, master, &report)
		}
	}

	if len(report.Unreachable) > 0 {
		report.fail(fmt.Errorf("%w: %s", ErrSlaveUnreachable, strings.Join(report.Unreachable, ", ")))
		logger.Error().Err(report.Err).Msg("Sync run incomplete")
	}

	logger.Info().
		Str("outcome", report.Outcome.String()).
		Int("applied", report.Applied).
		Int("failed", report.Failed).
		Int("presence_applied", report.PresenceApplied).
		Msg("Sync run finished")

	return report
}

// fetch reads and parses the export of one router
func (r *Runner) fetch(ctx context.Context, logger zerolog.Logger, target remote.Target) (*models.ReservationSet, error) {
	session, err := r.dialer.Open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	return r.export(ctx, logger, target.Host, session)
}

func (r *Runner) export(ctx context.Context, logger zerolog.Logger, host string, session remote.Session) (*models.ReservationSet, error) {
	logger.Debug().Str("router", host).Str("command", r.opts.ExportCommand).Msg("Fetching export")
	stdout, stderr, err := session.Execute(ctx, r.opts.ExportCommand)
	if err != nil {
		return nil, utils.WrapError(err, "export")
	}
	if msg := strings.TrimSpace(stderr); msg != "" {
		return nil, fmt.Errorf("export: %s", msg)
	}
	return r.parser.ParseExport(stdout), nil
}

func (r *Runner) syncSlave(ctx context.Context, logger zerolog.Logger, target remote.Target, master *models.ReservationSet, report *Report) {
	logger = logger.With().Str("router", target.Host).Logger()

	session, err := r.dialer.Open(ctx, target)
	if utils.CheckWarn(logger, err, "Slave unreachable, skipping") {
		report.Unreachable = append(report.Unreachable, target.Host)
		return
	}
	defer session.Close()

	slave, err := r.export(ctx, logger, target.Host, session)
	if utils.CheckWarn(logger, err, "Slave export failed, skipping") {
		report.Unreachable = append(report.Unreachable, target.Host)
		return
	}
	dumpSet(logger, "Slave reservations", target.Host, slave)

	actions, missing := static.Reconcile(master, slave)
	if len(missing) > 0 {
		report.MissingScopes[target.Host] = missing
	}
	metrics.SetMissingScopes(target.Host, len(missing))

	logger.Info().Int("actions", len(actions)).Strs("missing_scopes", missing).Msg("Reconciled slave")

	for _, action := range actions {
		cmd := action.Command()
		if r.opts.DryRun {
			logger.Info().Str("command", cmd).Msg("Would run")
			report.Planned = append(report.Planned, Planned{Target: target.Host, Command: cmd})
			continue
		}

		logger.Debug().Str("command", cmd).Msg("Running")
		_, stderr, err := session.Execute(ctx, cmd)
		if err == nil && strings.TrimSpace(stderr) != "" {
			err = errors.New(strings.TrimSpace(stderr))
		}
		metrics.RecordCommand(target.Host, action.Kind.String(), err == nil)
		if err != nil {
			report.Failed++
			logger.Error().Err(err).Str("command", cmd).Msg("Command failed")
			continue
		}
		report.Applied++
	}
}

func (r *Runner) syncTracker(ctx context.Context, logger zerolog.Logger, baseURL string, master *models.ReservationSet, report *Report) {
	logger = logger.With().Str("target", baseURL).Logger()
	svc := r.trackers(baseURL)

	tracked, err := svc.Hosts(ctx)
	if utils.CheckWarn(logger, err, "Cannot read tracked hosts") {
		return
	}

	actions := hosts.ReconcilePresence(master, tracked)
	logger.Info().Int("hosts", len(tracked)).Int("actions", len(actions)).Msg("Reconciled tracking service")

	for _, action := range actions {
		if r.opts.DryRun {
			desc := fmt.Sprintf("%s %s %q", action.Kind, action.ID, action.Name)
			logger.Info().Str("action", desc).Msg("Would call")
			report.Planned = append(report.Planned, Planned{Target: baseURL, Command: desc})
			continue
		}

		err := svc.Apply(ctx, action)
		metrics.RecordPresence(baseURL, action.Kind.String(), err == nil)
		if err != nil {
			report.PresenceFailed++
			logger.Warn().Err(err).Str("kind", action.Kind.String()).Str("id", string(action.ID)).Msg("Tracking service call failed")
			continue
		}
		report.PresenceApplied++
	}
}

func dumpSet(logger zerolog.Logger, msg, host string, set *models.ReservationSet) {
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	data, err := json.Marshal(set)
	if err != nil {
		return
	}
	logger.Debug().Str("router", host).RawJSON("reservations", data).Msg(msg)
}
