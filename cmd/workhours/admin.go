package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/normalize"
	"github.com/pbaille/workhours/internal/resolver"
	"github.com/pbaille/workhours/internal/store"
	"github.com/spf13/cobra"
)

func entitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities [kind]",
		Short: "List entities of a kind (technician, client, task_type, modality, group)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			entities, err := s.ListEntities(cmd.Context(), kind)
			if err != nil {
				return err
			}

			if len(entities) == 0 {
				fmt.Printf("No %s entities yet.\n", kind)
				return nil
			}

			for _, e := range entities {
				fmt.Printf("%s  %s\n", e.ID[:8], e.Name)
			}
			return nil
		},
	}
}

func resolveCmd() *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "resolve [kind] [name]",
		Short: "Look a name up with fuzzy matching",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}

			log, err := getLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			r := resolver.New(s, log)
			var id string
			if create {
				id, err = r.ResolveFuzzyOrCreate(cmd.Context(), kind, args[1])
			} else {
				var found bool
				id, found, err = r.ResolveFuzzy(cmd.Context(), kind, args[1])
				if err == nil && !found {
					fmt.Printf("No %s matches %q\n", kind, args[1])
					return nil
				}
			}
			if err != nil {
				return err
			}

			e, err := s.GetEntity(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", e.ID, e.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "create the entity when nothing matches")
	return cmd
}

// findEntity accepts either an entity id or a name matching exactly after normalization
func findEntity(ctx context.Context, s *store.Store, kind domain.Kind, ref string) (*domain.Entity, error) {
	if e, err := s.GetEntity(ctx, ref); err == nil && e.Kind == kind {
		return e, nil
	}
	e, err := s.FindEntity(ctx, kind, normalize.Normalize(ref))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%s not found: %s", kind, ref)
	}
	return e, err
}

func renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename [kind] [id or name] [new name]",
		Short: "Rename an entity, keeping its id",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := findEntity(cmd.Context(), s, kind, args[1])
			if err != nil {
				return err
			}

			renamed, err := s.RenameEntity(cmd.Context(), e.ID, normalize.Collapse(args[2]))
			if err != nil {
				return err
			}
			fmt.Printf("Renamed %s to %s\n", e.Name, renamed.Name)
			return nil
		},
	}
}

func weightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weight [kind] [name] [0-5]",
		Short: "Assign a weight to a task type, client or group",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			weight, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("weight must be an integer: %w", err)
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.SetWeight(cmd.Context(), kind, args[1], weight); err != nil {
				return err
			}
			fmt.Printf("%s %s = %d\n", kind, args[1], weight)
			return nil
		},
	}
}

func weightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weights [kind]",
		Short: "List assigned weights of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			weights, err := s.ListWeights(cmd.Context(), kind)
			if err != nil {
				return err
			}

			if len(weights) == 0 {
				fmt.Printf("No %s weights assigned.\n", kind)
				return nil
			}
			for _, w := range weights {
				fmt.Printf("%d  %s\n", w.Weight, w.EntityName)
			}
			return nil
		},
	}
}

func groupCmd() *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "group [client] [group]",
		Short: "Put a client in a group",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			client, err := findEntity(cmd.Context(), s, domain.KindClient, args[0])
			if err != nil {
				return err
			}

			var groupID *string
			if !detach {
				if len(args) < 2 {
					return errors.New("a group is required unless --detach is set")
				}
				g, err := findEntity(cmd.Context(), s, domain.KindGroup, args[1])
				if err != nil {
					return err
				}
				groupID = &g.ID
			}

			if err := s.SetClientGroup(cmd.Context(), client.ID, groupID); err != nil {
				return err
			}
			if detach {
				fmt.Printf("%s removed from its group\n", client.Name)
			} else {
				fmt.Printf("%s is now in %s\n", client.Name, args[1])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&detach, "detach", false, "remove the client from its group")
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [first name] [last name]",
		Short: "Add a user",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			last := ""
			if len(args) == 2 {
				last = args[1]
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			u, err := s.CreateUser(cmd.Context(), args[0], last)
			if err != nil {
				return err
			}
			fmt.Printf("Added user: %s %s\n", u.ID[:8], normalize.FullName(u.FirstName, u.LastName))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			users, err := s.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Printf("%s  %s\n", u.ID[:8], normalize.FullName(u.FirstName, u.LastName))
			}
			return nil
		},
	})

	return cmd
}
