package session

// Language returns the persisted UI language preference.
func (c *Controller) Language() string {
	return c.state.Language()
}

// SetLanguage persists the preference and notifies subscribers. The
// notification is an explicit channel send, not a broadcast bus: a slow
// subscriber drops the update rather than blocking the caller.
func (c *Controller) SetLanguage(code string) error {
	if err := c.state.SetLanguage(code); err != nil {
		return err
	}

	// The sends stay under the lock: cancel closes subscriber channels
	// under the same lock, and a send racing a close panics. The sends
	// never block, so holding the lock here is cheap.
	c.localeMu.Lock()
	defer c.localeMu.Unlock()

	for _, ch := range c.localeSubs {
		select {
		case ch <- code:
		default:
			c.logger.Warn("locale subscriber lagging, update dropped")
		}
	}

	return nil
}

// SubscribeLocale registers a listener for language changes. The returned
// cancel function removes the subscription and closes the channel.
func (c *Controller) SubscribeLocale() (<-chan string, func()) {
	ch := make(chan string, 1)

	c.localeMu.Lock()
	c.localeSubs = append(c.localeSubs, ch)
	c.localeMu.Unlock()

	cancel := func() {
		c.localeMu.Lock()
		defer c.localeMu.Unlock()

		for i, sub := range c.localeSubs {
			if sub == ch {
				c.localeSubs = append(c.localeSubs[:i], c.localeSubs[i+1:]...)
				close(ch)

				return
			}
		}
	}

	return ch, cancel
}
