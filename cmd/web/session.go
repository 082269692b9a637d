package main

// gameSessionIDKey stores the id of the game the browser is playing in the scs session.
const gameSessionIDKey = "gameSessionID"

// flashKey stores a one-time message shown on the next admin page.
const flashKey = "flash"
