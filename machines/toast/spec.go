package toast

// src is the toast machine's definition.  Delays, guards, actions,
// and the visibility activity are bound by New.
const src = `
name: toast
version: "1"
doc: |
  A toast is a short-lived notification.

  It's **visible** for its duration and then **dismissing** for
  `+"`removeDelay`"+` before it becomes **inactive** and asks its owner
  to remove it.  PAUSE freezes the remaining time; RESUME arms a timer
  for what's left.  Loading toasts persist until updated.

initial: active

entry:
  - setCreatedAt
  - invokeOnEntered

on:
  UPDATE:
    - guard:
        and: [hasTypeChanged, isLoadingType]
      target: persist
      actions: [setContext, invokeOnUpdate]
    - guard:
        or: [hasDurationChanged, hasTypeChanged]
      target: active:temp
      actions: [setContext, invokeOnUpdate]
    - actions: [setContext, invokeOnUpdate]

states:
  active:temp:
    tags: [visible, updating]
    after:
      "0": active

  persist:
    tags: [visible, paused]
    activities: trackDocumentVisibility
    on:
      RESUME:
        guard:
          not: isLoadingType
        target: active
        actions: setCreatedAt
      DISMISS: dismissing

  active:
    tags: visible
    activities: trackDocumentVisibility
    after:
      VISIBLE_DURATION: dismissing
    on:
      DISMISS: dismissing
      PAUSE:
        target: persist
        actions: setRemainingDuration

  dismissing:
    entry: invokeOnExiting
    after:
      REMOVE_DELAY:
        target: inactive
        actions: notifyParentToRemove

  inactive:
    entry: invokeOnExited
    type: final
`
