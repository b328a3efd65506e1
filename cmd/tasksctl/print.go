package main

import (
	"communityTasks/internal/board"
	"communityTasks/internal/models/task"
	"fmt"
	"io"
	"text/tabwriter"
)

func printNotifier(w io.Writer) board.Notifier {
	return board.NotifierFunc(func(n board.Notification) {
		if n.Description == "" {
			fmt.Fprintf(w, "[%s] %s\n", n.Severity, n.Title)
			return
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", n.Severity, n.Title, n.Description)
	})
}

func printTab(w io.Writer, s *board.Session) {
	switch s.Tab() {
	case board.TabMyTasks:
		printOwnerTasks(w, s.Owner.Tasks())
	case board.TabMyWork:
		printApplications(w, s.Worker.Applications())
	default:
		printCards(w, s.Browser.Cards())
	}
}

func printCards(w io.Writer, cards []board.TaskCard) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCOST\tPRIORITY\tOWNER\tACTION")
	for _, c := range cards {
		action := "-"
		if c.CanApply || c.Own {
			action = c.Label
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Task.UUID, c.Task.Title, c.Task.Cost.StringFixed(2), c.Task.Priority, c.Task.CreatedBy, action)
	}
	tw.Flush()
}

func printOwnerTasks(w io.Writer, views []board.OwnerTaskView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tAPPLICATIONS\tPENDING\tTO REVIEW")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
			v.Task.UUID, v.Task.Title, v.Task.Status, len(v.Task.Applications), v.Pending, v.AwaitingReview)
	}
	tw.Flush()
}

func printTasks(w io.Writer, tasks []*task.Task) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCOST\tSTATUS\tDUE")
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.UUID, t.Title, t.Cost.StringFixed(2), t.Status, due)
	}
	tw.Flush()
}

func printApplications(w io.Writer, apps []*task.Application) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTASK\tAPPLICANT\tBID\tSTATUS\tDELIVERY\tRATING")
	for _, a := range apps {
		rating := "-"
		if a.Rating != nil {
			rating = fmt.Sprintf("%d/%d", *a.Rating, task.MaxRating)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.UUID, a.TaskID, a.ApplicantID, a.BidAmount.StringFixed(2), a.Status, a.DeliveryStatus, rating)
	}
	tw.Flush()
}
