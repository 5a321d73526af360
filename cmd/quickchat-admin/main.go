package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/quickchat-app/quickchat/config"
	"github.com/quickchat-app/quickchat/globals"
	"github.com/quickchat-app/quickchat/persistence"
	"github.com/quickchat-app/quickchat/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// A very simple CLI tool for the administration of quickchat rooms.

var configPath = pflag.StringP("config", "c", "", "path to config file or directory")

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	cfg, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if cfg.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
	}

	store, err := persistence.NewStore(cfg)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	var cmdShow = &cobra.Command{
		Use:   "show",
		Short: "Show rooms or stats",
		Long:  `show is for printing room information or per-room message statistics.`,
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdShowRooms = &cobra.Command{
		Use:   "rooms",
		Short: "Show rooms",
		Long:  `show rooms lists all rooms, active or not.`,
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			rooms, err := store.Rooms()
			if err != nil {
				globals.AppLogger.Error("could not get rooms", "error", err)
				return
			}
			r, err := json.Marshal(rooms)
			if err != nil {
				globals.AppLogger.Error("could not marshal rooms", "error", err)
				return
			}
			fmt.Println(string(r))
		},
	}
	var cmdShowRoom = &cobra.Command{
		Use:   "room [room code]",
		Short: "Show room",
		Long:  `show room prints detail information about the room with the given code.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			room, err := store.FindRoomByCode(args[0])
			if err != nil {
				globals.AppLogger.Error("could not get room", "error", err)
				return
			}
			r, err := json.Marshal(room)
			if err != nil {
				globals.AppLogger.Error("could not marshal room", "error", err)
				return
			}
			fmt.Println(string(r))
		},
	}
	var cmdShowStats = &cobra.Command{
		Use:   "stats [room code]",
		Short: "Show room stats",
		Long:  `show stats prints aggregate message counts for the room with the given code.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			stats, err := store.RoomStats(args[0])
			if err != nil {
				globals.AppLogger.Error("could not get room stats", "error", err)
				return
			}
			s, err := json.Marshal(stats)
			if err != nil {
				globals.AppLogger.Error("could not marshal stats", "error", err)
				return
			}
			fmt.Println(string(s))
		},
	}
	var cmdSet = &cobra.Command{
		Use:   "set",
		Short: "create/update a room",
		Long:  `set creates or updates a room.`,
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdSetRoom = &cobra.Command{
		Use:   "room [room definition]",
		Short: "Set room",
		Long:  `set room creates or updates a room. If the room definition is "-", the definition is read from STDIN.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var r io.Reader
			if args[0] == "-" {
				r = os.Stdin
			} else {
				r = bytes.NewReader([]byte(args[0]))
			}
			dec := json.NewDecoder(r)
			room := types.Room{}
			err := dec.Decode(&room)
			if err != nil {
				globals.AppLogger.Error("could not decode room", "error", err)
				return
			}
			if room.Code == "" {
				globals.AppLogger.Error("no room code")
				return
			}
			err = store.StoreRoom(room)
			if err != nil {
				globals.AppLogger.Error("could not store room", "error", err)
				return
			}
		},
	}
	var cmdDeactivate = &cobra.Command{
		Use:   "deactivate",
		Short: "deactivate a room",
		Long:  `deactivate marks a room inactive, it can no longer be joined.`,
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdDeactivateRoom = &cobra.Command{
		Use:   "room [room code]",
		Short: "Deactivate room",
		Long:  `deactivate room flags the room with the given code as inactive.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			room, err := store.FindRoomByCode(args[0])
			if err != nil {
				globals.AppLogger.Error("could not get room", "error", err)
				return
			}
			room.Active = false
			err = store.StoreRoom(*room)
			if err != nil {
				globals.AppLogger.Error("could not store room", "error", err)
				return
			}
		},
	}
	var rootCmd = &cobra.Command{Use: "quickchat-admin"}
	rootCmd.AddCommand(cmdShow)
	rootCmd.AddCommand(cmdSet)
	rootCmd.AddCommand(cmdDeactivate)
	cmdShow.AddCommand(cmdShowRooms, cmdShowRoom, cmdShowStats)
	cmdSet.AddCommand(cmdSetRoom)
	cmdDeactivate.AddCommand(cmdDeactivateRoom)
	rootCmd.Execute()
}
