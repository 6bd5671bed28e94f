package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"resumedesk/internal/admin"
	"resumedesk/internal/auth"
	"resumedesk/internal/config"
	"resumedesk/internal/database"
	"resumedesk/internal/fields"
	"resumedesk/internal/store"
)

func main() {
	var (
		operator       = flag.Int64("operator", 0, "运营标识（必须在 OPERATOR_IDS 中）")
		exportPath     = flag.String("export", "", "导出 xlsx 到指定文件")
		includeDeleted = flag.Bool("include-deleted", false, "导出时包含已软删除的记录")
		showStats      = flag.Bool("stats", false, "打印记录统计")
		gatewayName    = flag.String("gateway-token", "", "为指定网关签发 WebSocket 令牌并打印")
	)
	flag.Parse()

	cfg := config.MustLoad()

	if name := strings.TrimSpace(*gatewayName); name != "" {
		tokens, err := auth.NewTokenService(cfg.Gateway.TokenSecret, cfg.Gateway.TokenTTL)
		if err != nil {
			log.Fatalf("init gateway tokens: %v", err)
		}
		token, err := tokens.Issue(name)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	if *exportPath == "" && !*showStats {
		flag.Usage()
		os.Exit(2)
	}

	operators, err := cfg.Admin.Operators()
	if err != nil {
		log.Fatalf("parse operator ids: %v", err)
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	registry := fields.Default()
	service := admin.NewService(admin.Options{
		Registry:  registry,
		Records:   store.New(db, registry),
		Operators: operators,
	})
	ctx := context.Background()

	if *showStats {
		st, err := service.Stats(ctx, *operator, time.Now())
		if err != nil {
			log.Fatalf("stats: %v", err)
		}
		fmt.Printf("total=%d today=%d hidden=%d blocked=%d\n", st.Total, st.OnDay, st.Deleted, st.Blocked)
	}

	if *exportPath != "" {
		var buf bytes.Buffer
		rows, err := service.ExportTo(ctx, *operator, *includeDeleted, &buf)
		if err != nil {
			log.Fatalf("export: %v", err)
		}
		if err := os.WriteFile(*exportPath, buf.Bytes(), 0o600); err != nil {
			log.Fatalf("write export: %v", err)
		}
		fmt.Printf("exported %d records to %s\n", rows, *exportPath)
	}
}
