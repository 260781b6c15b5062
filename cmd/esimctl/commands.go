package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	esim "github.com/iscanabdulhalik/go-esim"
	"github.com/iscanabdulhalik/go-esim/api"
	"github.com/iscanabdulhalik/go-esim/core"
)

type CLI struct {
	Config   string `help:"YAML configuration file." default:"esim.yaml" type:"path"`
	EnvFile  string `name:"env-file" help:"Dotenv file with ESIM_* variables." default:".env"`
	BaseURL  string `name:"base-url" help:"Override the backend base URL."`
	Store    string `help:"Session store DSN (sqlite)."`
	LogLevel string `name:"log-level" help:"Log level." default:"warn" enum:"trace,debug,info,warn,error"`
	LogFile  string `name:"log-file" help:"Write logs to a rotating file instead of stderr."`
	JSON     bool   `help:"Print raw response envelopes as JSON."`

	Login     LoginCmd     `cmd:"" help:"Sign in and store the session."`
	Logout    LogoutCmd    `cmd:"" help:"Sign out and clear the stored session."`
	Whoami    WhoamiCmd    `cmd:"" help:"Show the signed-in user."`
	Countries CountriesCmd `cmd:"" help:"List destination countries."`
	Packages  PackagesCmd  `cmd:"" help:"List data packages."`
	ESIMs     ESIMsCmd     `cmd:"" name:"esims" help:"List installed eSIMs."`
	Usage     UsageCmd     `cmd:"" help:"Show data usage for an eSIM."`
	QR        QRCmd        `cmd:"" name:"qr" help:"Print the activation code of an eSIM."`
}

func (c *CLI) configLoader() core.RawConfigLoader {
	return core.ChainLoader{
		core.YAMLFileLoader{Path: c.Config},
		core.DotenvLoader{Files: []string{c.EnvFile}},
	}
}

func (c *CLI) overrides() core.Config {
	cfg := core.Config{BaseURL: strings.TrimSpace(c.BaseURL)}
	if dsn := strings.TrimSpace(c.Store); dsn != "" {
		cfg.Storage = core.StorageConfig{Driver: "sqlite3", DSN: dsn}
	}
	return cfg
}

type app struct {
	ctx     context.Context
	runtime *esim.Runtime
	out     io.Writer
	json    bool
}

func (a *app) services() *api.Services {
	return a.runtime.Services
}

// report prints env and turns a failed envelope into an error so the
// process exits non-zero.
func (a *app) report(env core.Envelope, render func(w io.Writer)) error {
	if a.json {
		encoder := json.NewEncoder(a.out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(env); err != nil {
			return err
		}
	} else if env.Success && render != nil {
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		render(tw)
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if env.Success {
		return nil
	}
	return fmt.Errorf("%s: %s", env.Code, env.Error)
}

type LoginCmd struct {
	Email    string `arg:"" help:"Account email."`
	Password string `help:"Account password." env:"ESIM_PASSWORD" required:""`
}

func (c *LoginCmd) Run(a *app) error {
	result := a.services().Auth.Login(a.ctx, c.Email, c.Password)
	return a.report(result.Envelope, func(w io.Writer) {
		if user := result.Value.User; user != nil {
			fmt.Fprintf(w, "signed in as\t%s\n", user.Email)
			return
		}
		fmt.Fprintln(w, "signed in")
	})
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(a *app) error {
	env := a.services().Auth.Logout(a.ctx)
	if env.Code == core.ErrorCodeStoreFailure {
		return a.report(env, nil)
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(a *app) error {
	user, found, err := a.services().Auth.CurrentUser(a.ctx)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("not signed in")
	}
	fmt.Fprintf(a.out, "%s\t%s\n", user.ID, user.Email)
	return nil
}

type CountriesCmd struct{}

func (c *CountriesCmd) Run(a *app) error {
	result := a.services().Catalog.Countries(a.ctx)
	return a.report(result.Envelope, func(w io.Writer) {
		fmt.Fprintln(w, "CODE\tNAME")
		for _, country := range result.Value {
			fmt.Fprintf(w, "%s\t%s\n", country.Code, country.Name)
		}
	})
}

type PackagesCmd struct {
	Country string `help:"ISO country code."`
	Popular bool   `help:"Only popular packages."`
	Page    int    `help:"Page number."`
	Limit   int    `help:"Page size."`
}

func (c *PackagesCmd) Run(a *app) error {
	result := a.services().Catalog.Packages(a.ctx, api.PackageFilter{
		CountryCode: c.Country,
		Popular:     c.Popular,
		Page:        c.Page,
		Limit:       c.Limit,
	})
	return a.report(result.Envelope, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tDATA\tDAYS\tPRICE")
		for _, pkg := range result.Value {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f %s\n",
				pkg.ID, pkg.Name, core.FormatDataAmount(pkg.DataAmountMB), pkg.DurationDays, pkg.Price, pkg.Currency)
		}
	})
}

type ESIMsCmd struct {
	Status string `help:"Filter by status (active, inactive, expired)."`
}

func (c *ESIMsCmd) Run(a *app) error {
	result := a.services().ESIMs.List(a.ctx, core.ESIMStatus(c.Status))
	return a.report(result.Envelope, func(w io.Writer) {
		fmt.Fprintln(w, "ICCID\tSTATUS\tPACKAGE\tUSED")
		for _, item := range result.Value {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\n", item.ICCID, item.Status, item.PackageName, item.UsagePercent())
		}
	})
}

type UsageCmd struct {
	ICCID string `arg:"" name:"iccid" help:"eSIM ICCID."`
}

func (c *UsageCmd) Run(a *app) error {
	result := a.services().ESIMs.Usage(a.ctx, c.ICCID)
	return a.report(result.Envelope, func(w io.Writer) {
		usage := result.Value
		fmt.Fprintf(w, "used\t%s\n", core.FormatDataAmount(usage.DataUsedMB))
		fmt.Fprintf(w, "limit\t%s\n", core.FormatDataAmount(usage.DataLimitMB))
	})
}

type QRCmd struct {
	ICCID string `arg:"" name:"iccid" help:"eSIM ICCID."`
}

func (c *QRCmd) Run(a *app) error {
	result := a.services().ESIMs.QR(a.ctx, c.ICCID)
	return a.report(result.Envelope, func(w io.Writer) {
		fmt.Fprintln(w, result.Value.LPAString())
	})
}
