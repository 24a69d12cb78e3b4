package main

import (
	"math/big"
	"strconv"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"potledger/internal/config"
	"potledger/internal/models"
	"potledger/internal/store"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the persisted pool state",
		Long:  "Print the persisted pool state. Stop the server first when using the bolt driver, which holds an exclusive lock.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if cfg.Store.Driver == store.MemoryDriver {
				return errors.New("the memory driver keeps no state to inspect")
			}
			st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			state, err := st.Load()
			if err != nil {
				return err
			}
			return render(state, cfg.Pool.Decimals)
		},
	}
}

func render(state *models.State, decimals int32) error {
	amount := func(v uint64) string {
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -decimals).StringFixed(decimals)
	}

	pterm.DefaultSection.Println("Pool")
	status := pterm.LightGreen("open")
	if !state.Round.IsOpen {
		status = pterm.LightRed("closed")
	}
	err := pterm.DefaultTable.WithData(pterm.TableData{
		{"admin", string(state.Config.Admin)},
		{"asset", state.Config.Asset},
		{"rounds drawn", strconv.FormatUint(state.Config.RoundSequence, 10)},
		{"round", status},
		{"pot", amount(state.Round.Total)},
	}).Render()
	if err != nil {
		return err
	}

	pterm.DefaultSection.Println("Stakes")
	stakes := pterm.TableData{{"#", "depositor", "stake"}}
	for i, s := range state.Round.Stakes {
		stakes = append(stakes, []string{strconv.Itoa(i), string(s.Depositor), amount(s.Amount)})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(stakes).Render(); err != nil {
		return err
	}

	pterm.DefaultSection.Println("Unclaimed prizes")
	winners := pterm.TableData{{"winner", "owed"}}
	for _, rec := range state.Winners.Records() {
		winners = append(winners, []string{string(rec.Winner), amount(rec.Amount)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(winners).Render()
}
