// Package format строит Markdown-тексты для Telegram: сигналы, статус, настройки, ответы на команды.
package format

import (
	"fmt"
	"math"
	"strings"

	"divergence_bot/internal/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Pct: процент со знаком и одним знаком после точки; |v| < 0.05 => +0.0 (без "-0.0").
func Pct(v float64) string {
	if math.Abs(v) < 0.05 {
		return "+0.0"
	}
	return fmt.Sprintf("%+.1f", v)
}

// Price: $65,000.12
func Price(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if neg {
		sign = "-"
	}
	return sign + "$" + b.String() + "." + frac
}

func changeBlock(r models.GapReading, lookbackHours int) string {
	return fmt.Sprintf(
		"*Change over %dh:*\n"+
			"┌─────────────────────\n"+
			"│ BTC:  %s%%\n"+
			"│ ETH:  %s%%\n"+
			"│ Gap:  %s%%\n"+
			"└─────────────────────\n",
		lookbackHours, Pct(r.BTCChangePct), Pct(r.ETHChangePct), Pct(r.GapPct),
	)
}

// Event: текст алерта по событию автомата.
func Event(ev models.SignalEvent, p models.Params) string {
	switch ev.Kind {
	case models.EventS1Entry, models.EventS2Entry:
		direction, reason := "📈 Long BTC / Short ETH", "ETH pumped more than BTC"
		if ev.Strategy == models.StrategyS2 {
			direction, reason = "📈 Long ETH / Short BTC", "ETH dumped more than BTC"
		}
		return fmt.Sprintf(
			"🚨 *ENTRY SIGNAL: %s*\n\n%s\n_%s_\n\n%s\n⏰ Tracking mode activated",
			ev.Strategy, direction, reason, changeBlock(ev.Reading, p.LookbackHours),
		)
	case models.EventExit:
		return fmt.Sprintf(
			"✅ *EXIT SIGNAL: %s*\n\nGap converged - position profitable.\n\n%s\n🔍 Returning to scan mode",
			ev.Strategy, changeBlock(ev.Reading, p.LookbackHours),
		)
	case models.EventInvalidation:
		return fmt.Sprintf(
			"⚠️ *INVALIDATION: %s*\n\nGap widened further - consider closing.\n\n%s\n🔍 Returning to scan mode",
			ev.Strategy, changeBlock(ev.Reading, p.LookbackHours),
		)
	default:
		return fmt.Sprintf("❔ %s", ev.Kind)
	}
}

// Settings: текущие живые параметры.
func Settings(p models.Params) string {
	heartbeat := "off"
	if p.HeartbeatMinutes > 0 {
		heartbeat = fmt.Sprintf("%d min", p.HeartbeatMinutes)
	}
	return fmt.Sprintf(
		"*⚙️ Settings*\n\n"+
			"Lookback: `%dh`\n"+
			"Scan interval: `%ds`\n"+
			"Heartbeat: `%s`\n\n"+
			"📈 Entry: `±%s%%`\n"+
			"📉 Exit: `±%s%%`\n"+
			"⚠️ Invalidation: `±%s%%`\n",
		p.LookbackHours,
		p.ScanIntervalSeconds,
		heartbeat,
		f2(p.EntryThresholdPct),
		f2(p.ExitThresholdPct),
		f2(p.InvalidationThresholdPct),
	)
}

// Status: снимок для /status и heartbeat.
func Status(st models.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*📊 Status*\n\nState: `%s`\n", st.State)
	fmt.Fprintf(&b, "Warm-up: BTC `%.0f%%`, ETH `%.0f%%`\n\n", st.Warmup.BTC*100, st.Warmup.ETH*100)
	if st.LastReading != nil {
		b.WriteString(changeBlock(*st.LastReading, st.Config.LookbackHours))
		fmt.Fprintf(&b, "_at %s_\n\n", st.LastReading.Time.UTC().Format("2006-01-02 15:04 MST"))
	} else {
		b.WriteString("No reading yet (warming up).\n\n")
	}
	b.WriteString(Settings(st.Config))
	return b.String()
}

// Heartbeat: периодическая сводка, независимо от сигналов.
func Heartbeat(st models.Status) string {
	return "💓 *Heartbeat*\n\n" + strings.TrimPrefix(Status(st), "*📊 Status*\n\n")
}

// Startup: сообщение при запуске. prices может быть nil, если цены не получены.
func Startup(prices map[models.Asset]float64, p models.Params) string {
	var info string
	btc, okB := prices[models.AssetBTC]
	eth, okE := prices[models.AssetETH]
	if okB && okE {
		info = fmt.Sprintf(
			"\n💰 *Current Prices:*\n"+
				"┌─────────────────────\n"+
				"│ BTC: %s\n"+
				"│ ETH: %s\n"+
				"└─────────────────────\n",
			Price(btc), Price(eth),
		)
	} else {
		info = "\n⚠️ Unable to fetch current prices\n"
	}
	return fmt.Sprintf(
		"🤖 *Divergence Bot Started*\n%s\n"+
			"📈 Entry threshold: ±%s%%\n"+
			"📉 Exit threshold: ±%s%%\n"+
			"⚠️ Invalidation: ±%s%%\n"+
			"⏱ Lookback: %dh, scan every %ds\n\n"+
			"🔍 Scanning for BTC/ETH divergence...",
		info, f2(p.EntryThresholdPct), f2(p.ExitThresholdPct), f2(p.InvalidationThresholdPct),
		p.LookbackHours, p.ScanIntervalSeconds,
	)
}

// Help: список команд.
func Help() string {
	return "*🤖 Commands*\n\n" +
		"/settings — current settings\n" +
		"/status — state, warm-up, last gap\n" +
		"/lookback `<hours>` — window, 1..24\n" +
		"/interval `<seconds>` — scan interval, 60..3600\n" +
		"/heartbeat `<minutes>` — status every N min, 0 = off\n" +
		"/threshold `entry|exit|invalid <pct>` — signal thresholds\n" +
		"/help — this list"
}

// UnknownCommand: подсказка на неизвестную команду.
func UnknownCommand(name string) string {
	return fmt.Sprintf("❔ Unknown command `/%s`. Send /help for the list of commands.", code(name))
}

func Updated(field string, old, new float64) string {
	return fmt.Sprintf("✅ `%s`: %s → %s", field, num(old), num(new))
}

// Rejected: текст ошибки идёт вне code span, поэтому экранируется (lookback_hours и т.п.).
func Rejected(err error) string {
	return "❗️ Rejected: " + escape(err.Error())
}

// BadArgs: reason может содержать ввод оператора.
func BadArgs(reason, usage string) string {
	return fmt.Sprintf("❗️ %s\nUsage: `%s`", escape(reason), code(usage))
}

func escape(s string) string {
	return tgbot.EscapeText(tgbot.ModeMarkdown, s)
}

// code: внутри `...` legacy Markdown не умеет экранировать обратную кавычку.
func code(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}

func f2(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// num: целые без дробной части, остальное с двумя знаками.
func num(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e9 {
		return fmt.Sprintf("%d", int64(v))
	}
	return f2(v)
}
