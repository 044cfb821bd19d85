package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/ami-backup/internal/o11y"
	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel/attribute"
)

// Runner performs a complete backup run.
type Runner struct {
	API API

	// ServerName is the Name tag of the instance to back up, and the Name tag
	// given to (and swept from) its AMIs.
	ServerName string

	// RetentionDays is the age, in days, past which AMIs are deleted.
	RetentionDays int

	Wait WaitOptions

	// Sweeper expires old AMIs; its API defaults to the Runner's.
	Sweeper *Sweeper

	// Now is the clock used to name the new AMI. Default: time.Now.
	Now func() time.Time
}

// Result is what a run produced.
type Result struct {
	InstanceID string
	ImageID    string
	ImageName  string
	Snapshots  []string
	Sweep      *SweepReport
}

var ErrRunnerInvalid = fmt.Errorf("invalid backup run")

// Run resolves the instance, creates and tags a new AMI, then sweeps expired
// AMIs. Values produced by one step are passed explicitly to the next. The
// Result holds whatever was done before a failure.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.API == nil || r.ServerName == "" {
		return nil, fmt.Errorf("%w: an EC2 client and a server name are required", ErrRunnerInvalid)
	}
	if r.Sweeper == nil {
		r.Sweeper = &Sweeper{}
	}
	if r.Sweeper.API == nil {
		r.Sweeper.API = r.API
	}
	if r.Sweeper.Now == nil {
		r.Sweeper.Now = r.Now
	}

	log := clog.FromContext(ctx).With(o11y.AttrServerName, r.ServerName)
	ctx = clog.WithLogger(ctx, log)
	result := &Result{}

	log.Info("----- START -----")

	instanceID, err := r.resolve(ctx)
	if err != nil {
		return result, err
	}
	result.InstanceID = instanceID
	log.Info("resolved instance", o11y.AttrInstanceID, instanceID)

	imageID, imageName, err := r.create(ctx, instanceID)
	if err != nil {
		return result, err
	}
	result.ImageID, result.ImageName = imageID, imageName
	log.Info("created AMI", o11y.AttrImageID, imageID, o11y.AttrImageName, imageName)

	snapshots, err := r.tag(ctx, imageID, imageName)
	if err != nil {
		return result, err
	}
	result.Snapshots = snapshots

	report, err := r.sweep(ctx)
	result.Sweep = report
	if err != nil {
		return result, err
	}

	log.Info("----- DONE -----",
		"deregistered", len(report.Deregistered),
		"snapshots_deleted", len(report.SnapshotsDeleted),
	)
	return result, nil
}

func (r *Runner) resolve(ctx context.Context) (_ string, err error) {
	ctx, span := o11y.StartSpan(ctx, "resolve-instance")
	defer func() { o11y.EndSpan(span, err) }()

	return FindInstance(ctx, r.API, r.ServerName)
}

func (r *Runner) create(ctx context.Context, instanceID string) (_, _ string, err error) {
	ctx, span := o11y.StartSpan(ctx, "create-image", attribute.String(o11y.AttrInstanceID, instanceID))
	defer func() { o11y.EndSpan(span, err) }()

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	name := ImageName(r.ServerName, now())
	imageID, err := CreateImage(ctx, r.API, instanceID, name)
	if err != nil {
		return "", "", err
	}
	return imageID, name, nil
}

func (r *Runner) tag(ctx context.Context, imageID, imageName string) (_ []string, err error) {
	ctx, span := o11y.StartSpan(ctx, "tag-image", attribute.String(o11y.AttrImageID, imageID))
	defer func() { o11y.EndSpan(span, err) }()

	if err := AwaitImage(ctx, r.API, imageID, r.Wait); err != nil {
		return nil, err
	}
	return TagImage(ctx, r.API, imageID, r.ServerName, imageName)
}

func (r *Runner) sweep(ctx context.Context) (_ *SweepReport, err error) {
	ctx, span := o11y.StartSpan(ctx, "sweep-images", attribute.Int("retention_days", r.RetentionDays))
	defer func() { o11y.EndSpan(span, err) }()

	return r.Sweeper.Sweep(ctx, r.RetentionDays, r.ServerName)
}
