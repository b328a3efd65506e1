package main

import (
	"log"
	"os"

	"gopkg.in/urfave/cli.v2"
)

import _ "github.com/joho/godotenv/autoload"

const (
	flagServer   = "server"
	flagToken    = "token"
	flagUser     = "user"
	flagVerbose  = "verbose"
	flagTab      = "tab"
	flagMessage  = "message"
	flagBid      = "bid"
	flagContent  = "content"
	flagFeedback = "feedback"
	flagRating   = "rating"
	flagTitle    = "title"
	flagDesc     = "description"
	flagCost     = "cost"
	flagDuration = "duration"
	flagPriority = "priority"
	flagDueIn    = "due-in"
	flagProject  = "project"
)

var version = "dev"

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    flagServer,
		Usage:   "Base URL of the tasks service.",
		Value:   "http://localhost:8080",
		EnvVars: []string{"TASKSCTL_SERVER"},
	},
	&cli.StringFlag{
		Name:    flagToken,
		Usage:   "Bearer token.",
		EnvVars: []string{"TASKSCTL_TOKEN"},
	},
	&cli.StringFlag{
		Name:    flagUser,
		Usage:   "Expected user id of the token; the command fails on a mismatch.",
		EnvVars: []string{"TASKSCTL_USER"},
	},
	&cli.BoolFlag{
		Name:    flagVerbose,
		Usage:   "Log requests and state changes.",
		EnvVars: []string{"TASKSCTL_VERBOSE"},
	},
}

var commands = []*cli.Command{
	{
		Name:  "list",
		Usage: "Show one tab of the board",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagTab,
				Usage: "explore, my_tasks or my_work.",
				Value: "explore",
			},
		},
		Action: runList,
	},
	{
		Name:      "create",
		Usage:     "Post a new task",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagTitle, Usage: "Task title."},
			&cli.StringFlag{Name: flagDesc, Usage: "Task description."},
			&cli.StringFlag{Name: flagCost, Usage: "Reward, e.g. 120.50."},
			&cli.StringFlag{Name: flagDuration, Usage: "Free-form duration, e.g. \"3 days\"."},
			&cli.StringFlag{Name: flagPriority, Usage: "urgent, high, normal or low.", Value: "normal"},
			&cli.DurationFlag{Name: flagDueIn, Usage: "Deadline relative to now, e.g. 72h."},
			&cli.StringFlag{Name: flagProject, Usage: "Project reference."},
		},
		Action: runCreate,
	},
	{
		Name:      "apply",
		Usage:     "Apply to a task",
		ArgsUsage: "<task-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagMessage, Usage: "Cover letter (required)."},
			&cli.StringFlag{Name: flagBid, Usage: "Bid amount; defaults to the task cost."},
		},
		Action: runApply,
	},
	{
		Name:      "applications",
		Usage:     "List applications to one of your tasks",
		ArgsUsage: "<task-id>",
		Action:    runApplications,
	},
	{
		Name:      "accept",
		Usage:     "Accept a pending application",
		ArgsUsage: "<application-id>",
		Action:    runDecision(true),
	},
	{
		Name:      "reject",
		Usage:     "Reject a pending application",
		ArgsUsage: "<application-id>",
		Action:    runDecision(false),
	},
	{
		Name:      "deliver",
		Usage:     "Submit work for an accepted application",
		ArgsUsage: "<application-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagContent, Usage: "Delivery text or link (required)."},
		},
		Action: runDeliver,
	},
	{
		Name:      "request-changes",
		Usage:     "Send a delivery back with feedback",
		ArgsUsage: "<application-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagFeedback, Usage: "What has to change (required)."},
		},
		Action: runRequestChanges,
	},
	{
		Name:      "approve",
		Usage:     "Approve a delivery and rate the worker",
		ArgsUsage: "<application-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagFeedback, Usage: "Optional comment."},
			&cli.IntFlag{Name: flagRating, Usage: "Rating from 1 to 5.", Value: 5},
		},
		Action: runApprove,
	},
	{
		Name:      "rating",
		Usage:     "Show the rating of a user",
		ArgsUsage: "<user-id>",
		Action:    runRating,
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "tasksctl",
		Usage:    "Terminal client for the community tasks board",
		Version:  version,
		Flags:    globalFlags,
		Commands: commands,
	}
}

func main() {
	app := newApp()

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
