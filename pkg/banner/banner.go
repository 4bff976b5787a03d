package banner

import (
	"fmt"

	"courier/pkg/config"
)

const banner = `
 ██████╗ ██████╗ ██╗   ██╗██████╗ ██╗███████╗██████╗
██╔════╝██╔═══██╗██║   ██║██╔══██╗██║██╔════╝██╔══██╗
██║     ██║   ██║██║   ██║██████╔╝██║█████╗  ██████╔╝
██║     ██║   ██║██║   ██║██╔══██╗██║██╔══╝  ██╔══██╗
╚██████╗╚██████╔╝╚██████╔╝██║  ██║██║███████╗██║  ██║
 ╚═════╝ ╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝╚══════╝╚═╝  ╚═╝
`

// PrintWithEff prints the startup banner using the effective config so the
// operator can see which source (flags, env, file) won.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config source: %s\n", src)
	if eff.Config != nil {
		if len(eff.Config.Security.AdminEmails) > 0 {
			fmt.Printf("Admins:   %d configured\n", len(eff.Config.Security.AdminEmails))
		}
		if eff.Config.Reconcile.Enabled {
			cron := eff.Config.Reconcile.Cron
			if cron == "" {
				cron = "0 3 * * *"
			}
			fmt.Printf("Reconcile: enabled (%s)\n", cron)
		}
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /signup              - Create an account (JSON: email, password, name)")
	fmt.Println("POST /login               - Obtain a bearer token")
	fmt.Println("POST /send-message        - Send a direct or group message")
	fmt.Println("GET  /messages/{targetId} - List a conversation")
	fmt.Println("GET  /conversations       - List conversations, most recent first")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/signup' -d '{\"email\":\"a@b.c\",\"password\":\"secret123\",\"name\":\"Ann\"}'\n", addr)
	fmt.Printf("curl -H 'Authorization: Bearer <token>' 'http://localhost%s/conversations'\n", addr)
	fmt.Println("\n== Production? =================================================")
	fmt.Println("Set a proper storage path (--db)")
	fmt.Println("Set a strong token secret (COURIER_TOKEN_SECRET)")
}
