package worker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
	"github.com/sami-chanane/thesis-pizza-app/pkg/notifications"
	"github.com/sami-chanane/thesis-pizza-app/pkg/sarif"
	"github.com/sami-chanane/thesis-pizza-app/pkg/store"
	"github.com/sami-chanane/thesis-pizza-app/pkg/trivy"
)

const rescanTimeout = 15 * time.Minute

// RescanWorker scans the deployed image on a schedule. The vulnerability
// database moves while the image stands still, an image that was clean at
// deploy time may not be clean tomorrow.
type RescanWorker struct {
	store                *store.Store
	repoName             string
	scanner              *trivy.Scanner
	scanOptions          trivy.Options
	sink                 *sarif.Sink
	notificationsManager notifications.Manager
	schedule             string
}

func NewRescanWorker(
	store *store.Store,
	repoName string,
	scanner *trivy.Scanner,
	scanOptions trivy.Options,
	sink *sarif.Sink,
	notificationsManager notifications.Manager,
	schedule string,
) *RescanWorker {
	return &RescanWorker{
		store:                store,
		repoName:             repoName,
		scanner:              scanner,
		scanOptions:          scanOptions,
		sink:                 sink,
		notificationsManager: notificationsManager,
		schedule:             schedule,
	}
}

// Run registers the scheduled scan and returns, cron fires it on its own goroutine.
func (w *RescanWorker) Run() error {
	if _, err := cron.ParseStandard(w.schedule); err != nil {
		return fmt.Errorf("cannot parse the rescan schedule %q: %s", w.schedule, err)
	}

	c := cron.New()
	c.AddFunc(w.schedule, func() {
		err := w.Rescan()
		if err != nil {
			logrus.Errorf("cannot rescan the deployed image: %s", err)
		}
	})
	c.Start()
	return nil
}

// Rescan scans the image of the latest successful deploy with the current
// vulnerability database and ships the findings to the security sink.
func (w *RescanWorker) Rescan() error {
	deployed, err := w.store.LatestSuccessfulDeploy(w.repoName)
	if err == sql.ErrNoRows {
		logrus.Debugf("nothing deployed yet, skipping the rescan")
		return nil
	} else if err != nil {
		return fmt.Errorf("cannot get the latest deploy: %s", err)
	}
	if deployed.Image == "" {
		return nil
	}

	imageRef := deployed.Image
	if deployed.Digest != "" {
		if parsed, err := delivery.ParseImageRef(deployed.Image); err == nil {
			parsed.Digest = deployed.Digest
			if pinned, err := parsed.WithDigest(); err == nil {
				imageRef = pinned
			}
		}
	}

	logrus.Infof("rescanning %s", imageRef)
	ctx, cancel := context.WithTimeout(context.Background(), rescanTimeout)
	defer cancel()

	summary, report, err := w.scanner.ImageScan(ctx, imageRef, w.scanOptions)
	if err != nil {
		return fmt.Errorf("cannot scan %s: %s", imageRef, err)
	}

	if w.sink != nil {
		ref := "refs/heads/" + deployed.Branch
		if deployed.Event == delivery.Tag {
			ref = "refs/tags/" + deployed.Tag
		}
		err = w.sink.Upload(report, deployed.SHA, ref, "trivy")
		if err != nil {
			return fmt.Errorf("cannot upload the scan report: %s", err)
		}
	}

	err = w.store.SaveKeyValue(&model.KeyValue{
		Key:   model.LastScannedSHA,
		Value: deployed.SHA,
	})
	if err != nil {
		logrus.Warnf("cannot save the scan cursor: %s", err)
	}

	if summary.Failed && w.notificationsManager != nil {
		w.notificationsManager.Broadcast(
			notifications.MessageFromScanFindings(w.repoName, imageRef, summary.Desc()),
		)
	}

	return nil
}
