// Command pvstatus fetches and prints the latest status of a PVOutput
// system. Useful for verifying credentials before wiring a system into
// the collector.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gridlight-hq/pvharvest/pkg/pvoutput"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pvstatus: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		apiKey   = flag.String("api-key", os.Getenv("PVOUTPUT_API_KEY"), "PVOutput API key (defaults to PVOUTPUT_API_KEY)")
		systemID = flag.Int("system-id", 0, "PVOutput system id")
		baseURL  = flag.String("base-url", "", "override the API base URL")
		timeout  = flag.Duration("timeout", 10*time.Second, "request timeout")
		withMeta = flag.Bool("system", false, "also print system metadata")
	)
	flag.Parse()

	client, err := pvoutput.New(pvoutput.Config{
		APIKey:   *apiKey,
		SystemID: *systemID,
		BaseURL:  *baseURL,
		Timeout:  *timeout,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	status, err := client.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("reported at:        %s\n", status.ReportedAt.Format(time.RFC3339))
	fmt.Printf("energy generation:  %s Wh\n", fmtInt(status.EnergyGeneration))
	fmt.Printf("power generation:   %s W\n", fmtInt(status.PowerGeneration))
	fmt.Printf("energy consumption: %s Wh\n", fmtInt(status.EnergyConsumption))
	fmt.Printf("power consumption:  %s W\n", fmtInt(status.PowerConsumption))
	fmt.Printf("normalized output:  %s kW/kW\n", fmtFloat(status.NormalizedOutput))
	fmt.Printf("temperature:        %s C\n", fmtFloat(status.Temperature))
	fmt.Printf("voltage:            %s V\n", fmtFloat(status.Voltage))

	if *withMeta {
		system, err := client.System(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nsystem name:        %s\n", system.SystemName)
		fmt.Printf("system size:        %s W\n", fmtInt(system.SystemSize))
		fmt.Printf("panels:             %s x %s W\n", fmtInt(system.Panels), fmtInt(system.PanelPower))
		fmt.Printf("inverters:          %s x %s W\n", fmtInt(system.Inverters), fmtInt(system.InverterPower))
		if system.InstallDate != nil {
			fmt.Printf("install date:       %s\n", system.InstallDate.Format("2006-01-02"))
		}
	}

	if rl := client.RateLimit(); rl.Limit > 0 {
		fmt.Printf("\nrate limit:         %d/%d remaining, resets %s\n",
			rl.Remaining, rl.Limit, rl.Reset.Format(time.RFC3339))
	}
	return nil
}

func fmtInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
