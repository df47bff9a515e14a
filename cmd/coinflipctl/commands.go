package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"coinflip_escrow/internal/client"
	"coinflip_escrow/internal/domain"
)

func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a room and escrow your stake",
		Args:  cobra.NoArgs,
		RunE:  roomCreate,
	}
	cmd.Flags().StringP("room", "r", "", "room id, random when empty")
	cmd.Flags().StringP("stake", "s", "", "stake in SOL, e.g. 0.05")
	cmd.MarkFlagRequired("stake")
	return cmd
}

func roomCreate(cmd *cobra.Command, args []string) error {
	roomID, _ := cmd.Flags().GetString("room")
	stake, _ := cmd.Flags().GetString("stake")

	if roomID == "" {
		roomID = NewRoomID()
	}
	if _, err := domain.ParseSOL(stake); err != nil {
		return fmt.Errorf("invalid stake %q: %w", stake, err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	room, err := newClient().CreateRoom(ctx, roomID, stake)
	if err != nil {
		return err
	}
	return printJSON(cmd, room)
}

func JoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <room>",
		Short: "Join a waiting room, matching its stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			room, err := newClient().JoinRoom(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, room)
		},
	}
}

func PlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <room>",
		Short: "Start the flip (creator only)",
		Args:  cobra.ExactArgs(1),
		RunE:  roomPlay,
	}
	cmd.Flags().String("seed", "", "64-char hex seed, random when empty")
	return cmd
}

func roomPlay(cmd *cobra.Command, args []string) error {
	seedHex, _ := cmd.Flags().GetString("seed")

	var (
		seed domain.Seed
		err  error
	)
	if seedHex == "" {
		seed, err = NewSeed()
	} else {
		seed, err = domain.ParseSeed(seedHex)
	}
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	room, err := newClient().PlayRoom(ctx, args[0], seed)
	if err != nil {
		return err
	}
	return printJSON(cmd, room)
}

func ResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <room>",
		Short: "Settle a processing room once randomness is ready",
		Args:  cobra.ExactArgs(1),
		RunE:  roomResolve,
	}
	cmd.Flags().Bool("wait", false, "keep retrying until the room settles")
	cmd.Flags().Duration("interval", 2*time.Second, "retry interval with --wait")
	return cmd
}

func roomResolve(cmd *cobra.Command, args []string) error {
	wait, _ := cmd.Flags().GetBool("wait")
	interval, _ := cmd.Flags().GetDuration("interval")

	ctx, cancel := commandContext(cmd)
	defer cancel()

	c := newClient()
	room, err := c.GetRoom(ctx, args[0])
	if err != nil {
		return err
	}

	if wait {
		room, err = c.WaitResolved(ctx, room, interval)
	} else {
		room, err = c.ResolveRoom(ctx, room)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd, room)
}

func ShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <room>",
		Short: "Show a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			room, err := newClient().GetRoom(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, room)
		},
	}
}

func ListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rooms, newest first",
		Args:  cobra.NoArgs,
		RunE:  roomList,
	}
	cmd.Flags().String("status", "", "waiting, processing or finished")
	cmd.Flags().String("player", "", "only rooms this account plays in")
	cmd.Flags().Int("limit", 0, "maximum rooms returned")
	return cmd
}

func roomList(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	player, _ := cmd.Flags().GetString("player")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := client.ListOptions{
		Status: domain.RoomStatus(status),
		Player: domain.AccountID(player),
		Limit:  limit,
	}
	if opts.Status != "" && !opts.Status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	list, err := newClient().ListRooms(ctx, opts)
	if err != nil {
		return err
	}
	return printJSON(cmd, list)
}

func BalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := domain.ParseAccountID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			b, err := newClient().Balance(ctx, account)
			if err != nil {
				return err
			}
			return printJSON(cmd, b)
		},
	}
}

// NewRoomID returns a dashless uuid, which fits the 32-byte room id limit.
func NewRoomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func NewSeed() (domain.Seed, error) {
	var s domain.Seed
	for s.IsZero() {
		if _, err := rand.Read(s[:]); err != nil {
			return s, err
		}
	}
	return s, nil
}

func newClient() *client.Client {
	return client.New(settings.Server, settings.Token)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
