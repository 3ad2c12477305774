package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"aisuite/internal/ai/cost"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Print the billing rate table",
	Long: `Print the resolved billing rate table (config rates merged with rates_file).
With --model and --amount, evaluate one cost calculation against the table.`,
	RunE: runRates,
}

func init() {
	rootCmd.AddCommand(ratesCmd)

	flags := ratesCmd.Flags()
	flags.String("model", "", "model to price, e.g. gpt-4o or dall-e-3")
	flags.Float64("amount", 0, "usage amount (tokens, characters, seconds or images)")
	flags.String("flags", "", "comma separated cost flags: input,output,sd,hd,256x256,512x512,1024x1024,1024x1792,1792x1024")
}

func runRates(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	rates, err := cfg.Billing.ResolveRates()
	if err != nil {
		return fmt.Errorf("failed to resolve rates: %w", err)
	}

	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tRATE")
		for _, key := range rates.Keys() {
			fmt.Fprintf(w, "%s\t%s\n", key, rates[key].String())
		}
		return w.Flush()
	}

	amount, _ := cmd.Flags().GetFloat64("amount")
	rawFlags, _ := cmd.Flags().GetString("flags")
	opts, err := cost.ParseFlags(rawFlags)
	if err != nil {
		return err
	}

	total := cost.NewCalculator(rates).Calculate(amount, model, opts...)
	fmt.Fprintf(os.Stdout, "%s x %g = %s credits\n", model, amount, total.String())
	return nil
}
