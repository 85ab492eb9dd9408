package command

import (
	"regexp"
	"sort"
	"sync"
)

var (
	// registry: имя команды → обработчик.
	registry = make(map[string]Handler)
	mu       sync.RWMutex
	// commandNamePattern - strict kebab-case: буквы a-z, цифры, одиночные дефисы.
	commandNamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)
)

// Register регистрирует обработчик команды в глобальном реестре.
//
// Паникует если:
//   - h == nil
//   - h.Name() пустое или не в формате kebab-case
//   - команда с таким именем уже зарегистрирована
//
// Пример использования:
//
//	func RegisterCmd() {
//	    command.Register(&Handler{})
//	}
func Register(h Handler) {
	if h == nil {
		panic("command: nil handler")
	}
	name := h.Name()
	if name == "" {
		panic("command: empty handler name")
	}
	if !commandNamePattern.MatchString(name) {
		panic("command: invalid handler name format (must be kebab-case): " + name)
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := registry[name]; exists {
		panic("command: duplicate handler registration for " + name)
	}
	registry[name] = h
}

// Get возвращает обработчик команды по имени.
func Get(name string) (Handler, bool) {
	mu.RLock()
	defer mu.RUnlock()
	h, ok := registry[name]
	return h, ok
}

// All возвращает копию реестра.
func All() map[string]Handler {
	mu.RLock()
	defer mu.RUnlock()
	result := make(map[string]Handler, len(registry))
	for k, v := range registry {
		result[k] = v
	}
	return result
}

// Names возвращает отсортированный список имён зарегистрированных команд.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterWithAlias регистрирует обработчик под его именем и, если deprecated
// не пуст, под устаревшим именем через DeprecatedBridge.
//
// Паникует если h == nil или deprecated совпадает с h.Name().
//
//	func RegisterCmd() {
//	    // "poll" и устаревшее "notify"
//	    command.RegisterWithAlias(&Handler{}, "notify")
//	}
func RegisterWithAlias(h Handler, deprecated string) {
	if h == nil {
		panic("command: nil handler")
	}
	if deprecated != "" && deprecated == h.Name() {
		panic("command: deprecated alias equals handler name: " + deprecated)
	}
	Register(h)
	if deprecated == "" {
		return
	}
	Register(&DeprecatedBridge{
		actual:     h,
		deprecated: deprecated,
		newName:    h.Name(),
	})
}

// Info - команда и её устаревший алиас.
type Info struct {
	Name string
	// DeprecatedAlias пуст, если алиаса нет.
	DeprecatedAlias string
}

// ListAllWithAliases возвращает команды без самих мостов, с алиасом в поле
// DeprecatedAlias. Результат отсортирован по имени.
func ListAllWithAliases() []Info {
	mu.RLock()
	defer mu.RUnlock()

	aliasMap := make(map[string]string)
	for _, h := range registry {
		if bridge, ok := h.(*DeprecatedBridge); ok {
			aliasMap[bridge.newName] = bridge.deprecated
		}
	}

	result := make([]Info, 0, len(registry)-len(aliasMap))
	for name, h := range registry {
		if _, isBridge := h.(*DeprecatedBridge); isBridge {
			continue
		}
		result = append(result, Info{Name: name, DeprecatedAlias: aliasMap[name]})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// clearRegistry очищает реестр (только для тестов).
func clearRegistry() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]Handler)
}
