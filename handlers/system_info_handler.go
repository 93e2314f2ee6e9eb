package handlers

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"time"

	"echo-helper/bot"
	"echo-helper/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

var startedAt = time.Now()

// dataSize sums the files under the store directory.
func dataSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

func SystemInfoHandler(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cpuCount, _ := cpu.CountsWithContext(ctx, true)
	cpuPercent, _ := cpu.PercentWithContext(ctx, 0, false)
	usage := 0.0
	if len(cpuPercent) > 0 {
		usage = cpuPercent[0]
	}

	var memValue string
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memValue = fmt.Sprintf("%.1f%% (%d MB / %d MB)", vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024)
	} else {
		memValue = "unknown"
	}

	osValue, kernel := "unknown", "unknown"
	if hostInfo, err := host.InfoWithContext(ctx); err == nil {
		osValue = fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion)
		kernel = hostInfo.KernelVersion
	}

	cfg := b.GetConfig()
	openTickets := 0
	if st, err := b.Tickets.Stats(ctx, 0); err == nil {
		openTickets = st.ActiveTotal
	}

	embed := &discordgo.MessageEmbed{
		Title: "System Information",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "💻 OS", Value: osValue, Inline: true},
			{Name: "🔧 Kernel", Value: kernel, Inline: true},
			{Name: "🐹 Go Version", Value: runtime.Version(), Inline: true},
			{Name: "🔼 CPUs", Value: fmt.Sprintf("%d", cpuCount), Inline: true},
			{Name: "🔥 CPU Usage", Value: fmt.Sprintf("%.1f%%", usage), Inline: true},
			{Name: "🧠 Memory", Value: memValue, Inline: true},
			{Name: "🗃️ Store", Value: fmt.Sprintf("%s (%.2f MB)", cfg.StoreBackend, float64(dataSize(cfg.DataDir))/1024/1024), Inline: true},
			{Name: "⏱️ WebSocket Latency", Value: s.HeartbeatLatency().String(), Inline: true},
			{Name: "🚀 Goroutines", Value: fmt.Sprintf("%d", runtime.NumGoroutine()), Inline: true},
			{Name: "🎫 Open Tickets", Value: fmt.Sprintf("%d", openTickets), Inline: true},
			{Name: "📡 Live Watchers", Value: fmt.Sprintf("%d", len(b.Streams.Active())), Inline: true},
			{Name: "⌛ Uptime", Value: utils.FormatRemaining(time.Since(startedAt)), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("System monitor · %s", time.Now().Format("15:04")),
		},
	}
	utils.SendEmbedResponse(s, i, embed, nil, true)
}
