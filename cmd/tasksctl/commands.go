package main

import (
	"communityTasks/internal/board"
	"communityTasks/internal/client"
	"communityTasks/internal/handlers/dto"
	"communityTasks/internal/models/task"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/urfave/cli.v2"
)

type env struct {
	ctx     context.Context
	client  *client.Client
	session *board.Session
}

func (e *env) Close() {
	if e.session != nil {
		e.session.Close()
	}
}

func newClient(c *cli.Context) (*client.Client, error) {
	return client.New(c.String(flagServer), c.String(flagToken))
}

// newEnv открывает сессию доски и загружает все три вкладки.
// Пользователь берётся у сервера по токену; --user только сверяется с ним.
func newEnv(c *cli.Context) (*env, error) {
	api, err := newClient(c)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	viewer, err := api.WhoAmI(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve token owner: %w", err)
	}
	if want := c.String(flagUser); want != "" && want != viewer {
		return nil, fmt.Errorf("--user %q does not match the token owner %q", want, viewer)
	}

	log := zap.NewNop()
	if c.Bool(flagVerbose) {
		if log, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}

	session := board.NewSession(ctx, api, viewer,
		board.WithNotifier(printNotifier(os.Stderr)),
		board.WithLogger(log))
	e := &env{ctx: ctx, client: api, session: session}

	if err := session.Load(ctx); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func idArg(c *cli.Context, what string) (uuid.UUID, error) {
	raw := c.Args().First()
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s is required", what)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %q: %w", what, raw, err)
	}
	return id, nil
}

func runList(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	tab := board.Tab(c.String(flagTab))
	if err := e.session.SwitchTab(tab); err != nil {
		return err
	}
	printTab(os.Stdout, e.session)
	return nil
}

func runCreate(c *cli.Context) error {
	api, err := newClient(c)
	if err != nil {
		return err
	}

	req := dto.CreateTaskRequest{
		Title:       c.String(flagTitle),
		Description: c.String(flagDesc),
		Duration:    c.String(flagDuration),
		Priority:    task.Priority(c.String(flagPriority)),
		ProjectID:   c.String(flagProject),
	}
	if raw := c.String(flagCost); raw != "" {
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("cost %q: %w", raw, err)
		}
		req.Cost = &cost
	}
	if dueIn := c.Duration(flagDueIn); dueIn > 0 {
		due := time.Now().Add(dueIn).UTC()
		req.DueDate = &due
	}

	created, err := api.CreateTask(context.Background(), req)
	if err != nil {
		return err
	}
	printTasks(os.Stdout, []*task.Task{created})
	return nil
}

func runApply(c *cli.Context) error {
	taskID, err := idArg(c, "task id")
	if err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	b := e.session.Browser
	if err := b.OpenApply(taskID); err != nil {
		return err
	}
	b.SetMessage(c.String(flagMessage))
	if c.IsSet(flagBid) {
		b.SetBid(c.String(flagBid))
	}
	if !b.CanSubmit() {
		return errors.New("a non-empty --message is required and --bid must be a non-negative amount with at most two decimals")
	}

	err = b.Submit(e.ctx)
	if errors.Is(err, task.ErrDuplicateApplication) {
		// уведомление уже напечатано, повторный отклик не считается сбоем
		return nil
	}
	return err
}

func runApplications(c *cli.Context) error {
	taskID, err := idArg(c, "task id")
	if err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.session.Owner.OpenApplications(e.ctx, taskID); err != nil {
		return err
	}
	apps, _ := e.session.Owner.Applications()
	printApplications(os.Stdout, apps)
	return nil
}

func runDecision(accept bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		appID, err := idArg(c, "application id")
		if err != nil {
			return err
		}
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		defer e.Close()

		if accept {
			return e.session.Owner.Accept(e.ctx, appID)
		}
		return e.session.Owner.Reject(e.ctx, appID)
	}
}

func runDeliver(c *cli.Context) error {
	appID, err := idArg(c, "application id")
	if err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	w := e.session.Worker
	if err := w.OpenDelivery(appID); err != nil {
		return err
	}
	w.SetContent(c.String(flagContent))
	if !w.CanSubmit() {
		return errors.New("--content is required")
	}
	return w.Submit(e.ctx)
}

func runRequestChanges(c *cli.Context) error {
	panel, e, err := openReview(c)
	if err != nil {
		return err
	}
	defer e.Close()

	panel.SetFeedback(c.String(flagFeedback))
	if !panel.CanRequestChanges() {
		return errors.New("the delivery is not awaiting review or --feedback is empty")
	}
	return panel.RequestChanges(e.ctx)
}

func runApprove(c *cli.Context) error {
	panel, e, err := openReview(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := panel.SetRating(c.Int(flagRating)); err != nil {
		return err
	}
	panel.SetFeedback(c.String(flagFeedback))
	if panel.CanRate() {
		// работа уже одобрена, не хватает только оценки
		return panel.Rate(e.ctx)
	}
	if !panel.CanApprove() {
		return errors.New("the delivery is not awaiting review")
	}
	return panel.Approve(e.ctx)
}

func openReview(c *cli.Context) (*board.ApplicationReviewPanel, *env, error) {
	appID, err := idArg(c, "application id")
	if err != nil {
		return nil, nil, err
	}
	e, err := newEnv(c)
	if err != nil {
		return nil, nil, err
	}
	panel, err := e.session.Owner.OpenReview(appID)
	if err != nil {
		e.Close()
		return nil, nil, err
	}
	return panel, e, nil
}

func runRating(c *cli.Context) error {
	userID := c.Args().First()
	if userID == "" {
		return errors.New("user id is required")
	}
	api, err := newClient(c)
	if err != nil {
		return err
	}
	summary, err := api.GetUserRating(context.Background(), userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s: %.2f (%d ratings)\n", summary.UserID, summary.Average, summary.Count)
	return nil
}
