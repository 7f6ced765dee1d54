package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	apiclient "github.com/splax/tasktrack/pkg/api/client"
)

func commandList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args)

	client, _, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	todos, err := client.ListTodos(ctx)
	if err != nil {
		return err
	}
	return renderTodos(os.Stdout, todos)
}

func commandAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "Task title")
	description := fs.String("description", "", "Optional description")
	due := fs.String("due", "", "Optional due date (YYYY-MM-DD)")
	fs.Parse(args)

	text := strings.TrimSpace(*title)
	if text == "" {
		text = strings.TrimSpace(strings.Join(fs.Args(), " "))
	}
	if text == "" {
		return errors.New("--title is required")
	}
	input := apiclient.CreateTodoInput{Title: text}
	if *description != "" {
		input.Description = description
	}
	if *due != "" {
		input.DueDate = due
	}

	client, _, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	todo, err := client.CreateTodo(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("todo created: %s (%s)\n", todo.ID, todo.Title)
	return nil
}

func commandEdit(args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return errors.New("usage: todo edit <id> [flags]")
	}
	ref := args[0]
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	title := fs.String("title", "", "New title")
	description := fs.String("description", "", "New description")
	due := fs.String("due", "", "New due date (YYYY-MM-DD)")
	clearDue := fs.Bool("clear-due", false, "Remove the due date")
	clearDescription := fs.Bool("clear-description", false, "Remove the description")
	fs.Parse(args[1:])

	return updateTodo(ref, func(in *apiclient.UpdateTodoInput) {
		if *title != "" {
			in.Title = *title
		}
		if *description != "" {
			in.Description = description
		}
		if *clearDescription {
			in.Description = nil
		}
		if *due != "" {
			in.DueDate = due
		}
		if *clearDue {
			in.DueDate = nil
		}
	})
}

func commandSetCompleted(args []string, completed bool) error {
	if len(args) != 1 {
		return errors.New("usage: todo done|undone <id>")
	}
	return updateTodo(args[0], func(in *apiclient.UpdateTodoInput) {
		in.Completed = completed
	})
}

// updateTodo fetches the current task and sends it back with mutate applied,
// since PUT replaces every field.
func updateTodo(ref string, mutate func(*apiclient.UpdateTodoInput)) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	todos, err := client.ListTodos(ctx)
	if err != nil {
		return err
	}
	current, err := resolveTodo(todos, ref)
	if err != nil {
		return err
	}
	input := apiclient.UpdateFrom(current)
	mutate(&input)
	updated, err := client.UpdateTodo(ctx, current.ID, input)
	if err != nil {
		return err
	}
	fmt.Printf("todo updated: %s %s\n", updated.ID, describeTodo(updated))
	return nil
}

func commandRemove(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: todo rm <id>")
	}
	client, _, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	todos, err := client.ListTodos(ctx)
	if err != nil {
		return err
	}
	current, err := resolveTodo(todos, args[0])
	if err != nil {
		return err
	}
	id, err := client.DeleteTodo(ctx, current.ID)
	if err != nil {
		return err
	}
	fmt.Printf("todo deleted: %s\n", id)
	return nil
}

// resolveTodo finds the task whose id equals ref or starts with it.
func resolveTodo(todos []apiclient.Todo, ref string) (apiclient.Todo, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return apiclient.Todo{}, errors.New("task id is required")
	}
	var matches []apiclient.Todo
	for _, t := range todos {
		id := strings.ToLower(t.ID)
		if id == ref {
			return t, nil
		}
		if strings.HasPrefix(id, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return apiclient.Todo{}, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return apiclient.Todo{}, fmt.Errorf("%q matches %d tasks, use a longer prefix", ref, len(matches))
	}
}

func renderTodos(w io.Writer, todos []apiclient.Todo) error {
	if len(todos) == 0 {
		_, err := fmt.Fprintln(w, "no todos")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tDUE\tTITLE")
	for _, t := range todos {
		due := "-"
		if t.DueDate != nil {
			due = *t.DueDate
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", shortID(t.ID), status(t), due, t.Title)
	}
	return tw.Flush()
}

func describeTodo(t apiclient.Todo) string {
	out := fmt.Sprintf("[%s] %s", status(t), t.Title)
	if t.DueDate != nil {
		out += " due " + *t.DueDate
	}
	return out
}

func status(t apiclient.Todo) string {
	if t.Completed {
		return "done"
	}
	return "open"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
