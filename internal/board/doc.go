package board

// A JIT accelerator is not implemented here, but any future one must be a
// drop-in for CPU.Step plus Board.Tick: given the same starting state, it
// must produce the same (Clock, memory side effects, IF/IE) tuple as the
// interpreter would have for the same instruction range, and must fall
// back to Board.Read/Board.Write/Board.Tick for any access it cannot
// prove side-effect-free (VRAM, OAM, IO registers, bank-switch triggers).
