package village

import (
	"villageserver/models"
	"villageserver/push"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	keyTurnTitle       = "turn.title"
	keyTurnBody        = "turn.body"
	keyTurnEndTitle    = "turn_end.title"
	keyTurnEndBody     = "turn_end.body"
	keyDeathTitle      = "death.title"
	keyDeathVillage    = "death.village"
	keyDeathWitch      = "death.witch"
	keyDeathWolves     = "death.wolves"
	keyMayorTitle      = "mayor.title"
	keyMayorElected    = "mayor.elected"
	keyMayorSuccession = "mayor.succession"
	keyLovedTitle      = "loved.title"
	keyLovedBody       = "loved.body"
)

// 先頭がデフォルト
var supportedLocales = []language.Tag{language.Spanish, language.English}

var localeMatcher = language.NewMatcher(supportedLocales)

var messageCatalog = buildCatalog(map[language.Tag]map[string]string{
	language.Spanish: {
		keyTurnTitle:       "¡Tu turno!",
		keyTurnBody:        "Te toca jugar %s",
		keyTurnEndTitle:    "Tu turno termina",
		keyTurnEndBody:     "El turno de %s está terminando",
		keyDeathTitle:      "Has muerto",
		keyDeathVillage:    "El pueblo ha decidido ahorcarte",
		keyDeathWitch:      "La bruja te ha envenenado",
		keyDeathWolves:     "Los lobos te han devorado",
		keyMayorTitle:      "Eres el alcalde",
		keyMayorElected:    "El pueblo te ha elegido alcalde",
		keyMayorSuccession: "El alcalde anterior te ha nombrado su sucesor",
		keyLovedTitle:      "Te has enamorado",
		keyLovedBody:       "Cupido te ha unido a %s",
	},
	language.English: {
		keyTurnTitle:       "Your turn!",
		keyTurnBody:        "Time to play %s",
		keyTurnEndTitle:    "Your turn is ending",
		keyTurnEndBody:     "The %s turn is ending",
		keyDeathTitle:      "You died",
		keyDeathVillage:    "The village voted to hang you",
		keyDeathWitch:      "The witch poisoned you",
		keyDeathWolves:     "The wolves devoured you",
		keyMayorTitle:      "You are the mayor",
		keyMayorElected:    "The village elected you mayor",
		keyMayorSuccession: "The previous mayor named you successor",
		keyLovedTitle:      "You are in love",
		keyLovedBody:       "Cupid paired you with %s",
	},
})

func buildCatalog(tables map[language.Tag]map[string]string) *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(supportedLocales[0]))
	for tag, table := range tables {
		for key, msg := range table {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

type texts struct {
	p *message.Printer
}

func newTexts(locale string) texts {
	_, idx, _ := localeMatcher.Match(language.Make(locale))
	return texts{p: message.NewPrinter(supportedLocales[idx], message.Catalog(messageCatalog))}
}

func (t texts) get(key string, args ...interface{}) string {
	return t.p.Sprintf(key, args...)
}

func (t texts) turnStart(role string) push.Message {
	return push.NewMessage(t.get(keyTurnTitle), t.get(keyTurnBody, role))
}

func (t texts) turnEnd(role string) push.Message {
	return push.NewMessage(t.get(keyTurnEndTitle), t.get(keyTurnEndBody, role))
}

// status はステータスの出来事に対応する通知を返します。未知の種類なら false
func (t texts) status(ev models.StatusEvent) (push.Message, bool) {
	var title, body string
	switch ev.Kind {
	case models.StatusDeath:
		title = t.get(keyDeathTitle)
		switch ev.Cause() {
		case models.CauseVillage:
			body = t.get(keyDeathVillage)
		case models.CauseWitch:
			body = t.get(keyDeathWitch)
		default:
			// 村・魔女以外の死因はすべて狼によるものとして扱う
			body = t.get(keyDeathWolves)
		}
	case models.StatusMayor:
		title = t.get(keyMayorTitle)
		if ev.Cause() == models.CauseVillage {
			body = t.get(keyMayorElected)
		} else {
			body = t.get(keyMayorSuccession)
		}
	case models.StatusLoved:
		if ev.Detail == "" {
			return push.Message{}, false
		}
		title = t.get(keyLovedTitle)
		body = t.get(keyLovedBody, ev.Detail)
	default:
		return push.Message{}, false
	}
	return push.NewMessage(title, body), true
}
