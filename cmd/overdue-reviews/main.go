// Command overdue-reviews reminds reviewers whose assignments are past due.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"editorial-workflow-api/config"
	"editorial-workflow-api/services"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	config.InitDB()

	var (
		limit    int
		dryRun   bool
		trigger  string
		lockName string
	)

	flag.IntVar(&limit, "limit", 0, "maximum number of assignments to process (optional)")
	flag.BoolVar(&dryRun, "dry-run", false, "count overdue assignments without sending reminders")
	flag.StringVar(&trigger, "trigger", "cli", "trigger source label stored in review_sweep_runs")
	flag.StringVar(&lockName, "lock-name", "overdue_review_sweep", "MySQL advisory lock name (empty to disable)")
	flag.Parse()

	if limit < 0 {
		log.Fatal("limit must be greater than or equal to 0")
	}

	store := services.NewGormStore(config.DB)
	notifier := services.FanoutNotifier{
		services.NewInboxNotifier(config.DB),
		services.NewMailNotifier(config.DB, config.LoadMailSettings()),
	}

	job := services.NewReviewSweepJobService(config.DB, store, notifier)
	summary, err := job.Run(context.Background(), &services.ReviewSweepInput{
		TriggerSource: trigger,
		LockName:      lockName,
		Limit:         limit,
		DryRun:        dryRun,
		RecordRun:     !dryRun,
	})
	if err != nil {
		if errors.Is(err, services.ErrReviewSweepAlreadyRunning) {
			log.Fatal("overdue review sweep already running (advisory lock held)")
		}
		log.Fatalf("overdue review sweep failed: %v", err)
	}

	fmt.Printf("Assignments scanned: %d, overdue: %d\n", summary.AssignmentsScanned, summary.AssignmentsOverdue)
	fmt.Printf("Reminders sent: %d, failed: %d\n", summary.RemindersQueued, summary.RemindersFailed)

	if dryRun {
		fmt.Println("Dry run complete. No reminders were sent.")
	}

	if summary.RemindersFailed > 0 {
		os.Exit(2)
	}
}
