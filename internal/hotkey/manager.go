package hotkey

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.design/x/hotkey"

	"github.com/local/screenassist/internal/keybind"
)

// Action ties a binding string to the handler run on keydown.
type Action struct {
	Name    string
	Binding string
	Handler func()
}

// registration is the part of *hotkey.Hotkey the manager uses.
type registration interface {
	Keydown() <-chan hotkey.Event
	Unregister() error
}

type registerFunc func(keybind.Binding) (registration, error)

func registerNative(b keybind.Binding) (registration, error) {
	mods, key, err := native(b)
	if err != nil {
		return nil, err
	}
	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return nil, err
	}
	return hk, nil
}

// Manager owns a set of registered global hotkeys.
type Manager struct {
	regs []registration
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Start parses and registers every action. If any binding is invalid,
// duplicated or rejected by the OS, the ones already registered are released
// and the error is returned.
func Start(actions []Action) (*Manager, error) {
	return start(actions, registerNative)
}

func start(actions []Action, register registerFunc) (*Manager, error) {
	m := &Manager{done: make(chan struct{})}
	used := map[string]string{}
	for _, a := range actions {
		b, err := keybind.ParseBinding(a.Binding)
		if err != nil {
			m.release()
			return nil, fmt.Errorf("hotkey %s: %w", a.Name, err)
		}
		if prev, dup := used[b.String()]; dup {
			m.release()
			return nil, fmt.Errorf("hotkey %s: %s already bound to %s", a.Name, b, prev)
		}
		used[b.String()] = a.Name

		reg, err := register(b)
		if err != nil {
			m.release()
			return nil, fmt.Errorf("hotkey %s (%s): register: %w", a.Name, b, err)
		}
		m.regs = append(m.regs, reg)
		m.wg.Add(1)
		go m.listen(a, reg)
		log.Info().Str("action", a.Name).Str("binding", b.String()).Msg("hotkey registered")
	}
	return m, nil
}

func (m *Manager) listen(a Action, reg registration) {
	defer m.wg.Done()
	keydown := reg.Keydown()
	for {
		select {
		case <-m.done:
			return
		case _, ok := <-keydown:
			if !ok {
				return
			}
			log.Debug().Str("action", a.Name).Msg("hotkey pressed")
			if a.Handler != nil {
				a.Handler()
			}
		}
	}
}

// Stop unregisters every hotkey and waits for the listeners to exit.
func (m *Manager) Stop() error {
	return m.release()
}

func (m *Manager) release() error {
	var err error
	m.once.Do(func() {
		close(m.done)
		m.wg.Wait()
		for _, r := range m.regs {
			err = errors.Join(err, r.Unregister())
		}
	})
	return err
}
