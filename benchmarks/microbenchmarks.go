package benchmarks

import "github.com/hartlab/hartsim/emu"

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark stresses one corner of the fetch/decode/execute loop.
// Most are unrolled so the instruction mix stays explicit; loop_sum and
// multiply_chain exercise taken backward branches and the M extension.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		mixedOperations(),
		vectorMultiply(),
		loopSum(),
		multiplyChain(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick
// validation: a real loop, a vector multiply, and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSum(),
		vectorMultiply(),
		branchTaken(),
	}
}

// 1. Arithmetic Sequential - independent ALU operations
func arithmeticSequential() Benchmark {
	program := []uint32{}
	// 4 rounds of 5 independent ADDIs into t0..t2, s0, s1
	for i := 0; i < 4; i++ {
		program = append(program,
			EncodeADDI(5, 0, 1), // t0 = 1
			EncodeADDI(6, 0, 2), // t1 = 2
			EncodeADDI(7, 0, 3), // t2 = 3
			EncodeADDI(8, 0, 4), // s0 = 4
			EncodeADDI(9, 0, 5), // s1 = 5
		)
	}
	program = append(program,
		EncodeADDI(10, 8, 0),  // a0 = s0
		EncodeADDI(17, 0, 93), // a7 = exit
		EncodeECALL(),
	)
	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "20 independent ADDI operations - measures raw ALU dispatch",
		Program:      BuildProgram(program...),
		ExpectedExit: 4, // a0 = s0 = 4
	}
}

// 2. Dependency Chain - serial ADDIs through a single register
func dependencyChain() Benchmark {
	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs (a0 = a0 + 1) - measures serial execution",
		Program:      buildDependencyChain(20),
		ExpectedExit: 20,
	}
}

func buildDependencyChain(length int) []byte {
	instrs := []uint32{EncodeADDI(10, 0, 0)} // a0 = 0
	for i := 0; i < length; i++ {
		instrs = append(instrs, EncodeADDI(10, 10, 1)) // a0 += 1
	}
	instrs = append(instrs,
		EncodeADDI(17, 0, 93), // a7 = exit
		EncodeECALL(),
	)
	return BuildProgram(instrs...)
}

// 3. Memory Sequential - store/load pairs walking up a buffer
func memorySequential() Benchmark {
	return Benchmark{
		Name:        "memory_sequential",
		Description: "10 SD/LD pairs to sequential addresses - measures the memory path",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			regFile.WriteReg(5, 0x8000) // t0 = buffer base
			regFile.WriteReg(10, 42)    // a0 = value to store/load
		},
		Program: BuildProgram(
			// Store a0 to 0(t0), load it back, repeat at higher offsets.
			// Loading into a0 keeps the exit value live through every pair.
			EncodeSD(10, 5, 0), EncodeLD(10, 5, 0),
			EncodeSD(10, 5, 8), EncodeLD(10, 5, 8),
			EncodeSD(10, 5, 16), EncodeLD(10, 5, 16),
			EncodeSD(10, 5, 24), EncodeLD(10, 5, 24),
			EncodeSD(10, 5, 32), EncodeLD(10, 5, 32),
			EncodeSD(10, 5, 40), EncodeLD(10, 5, 40),
			EncodeSD(10, 5, 48), EncodeLD(10, 5, 48),
			EncodeSD(10, 5, 56), EncodeLD(10, 5, 56),
			EncodeSD(10, 5, 64), EncodeLD(10, 5, 64),
			EncodeSD(10, 5, 72), EncodeLD(10, 5, 72),
			EncodeADDI(17, 0, 93), // a7 = exit
			EncodeECALL(),
		),
		ExpectedExit: 42,
	}
}

// 4. Function Calls - JAL/JALR pairs
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "5 function calls (JAL + JALR pairs) - measures call overhead",
		Program: BuildProgram(
			// main: call add_one 5 times
			EncodeADDI(10, 0, 0),  // a0 = 0
			EncodeJAL(1, 28),      // jal ra, add_one (at byte 32)
			EncodeJAL(1, 24),      // jal ra, add_one
			EncodeJAL(1, 20),      // jal ra, add_one
			EncodeJAL(1, 16),      // jal ra, add_one
			EncodeJAL(1, 12),      // jal ra, add_one
			EncodeADDI(17, 0, 93), // a7 = exit
			EncodeECALL(),

			// add_one function (at byte 32)
			EncodeADDI(10, 10, 1), // a0 += 1
			EncodeJALR(0, 1, 0),   // ret
		),
		ExpectedExit: 5, // 5 calls * 1 add = 5
	}
}

// 5. Branch Taken - forward branches skipping dead code
func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "5 taken forward branches (BEQ zero, zero) - measures redirects",
		Program: BuildProgram(
			EncodeADDI(10, 0, 0), // a0 = 0

			EncodeBEQ(0, 0, 8),    // skip next instr
			EncodeADDI(6, 6, 99),  // skipped
			EncodeADDI(10, 10, 1), // a0 += 1

			EncodeBEQ(0, 0, 8),
			EncodeADDI(6, 6, 99), // skipped
			EncodeADDI(10, 10, 1),

			EncodeBEQ(0, 0, 8),
			EncodeADDI(6, 6, 99), // skipped
			EncodeADDI(10, 10, 1),

			EncodeBEQ(0, 0, 8),
			EncodeADDI(6, 6, 99), // skipped
			EncodeADDI(10, 10, 1),

			EncodeBEQ(0, 0, 8),
			EncodeADDI(6, 6, 99), // skipped
			EncodeADDI(10, 10, 1),

			EncodeADDI(17, 0, 93), // a7 = exit
			EncodeECALL(),
		),
		ExpectedExit: 5,
	}
}

// 6. Mixed Operations - ALU, memory, and call traffic together
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "Mix of ADD, SD/LD, and JAL - realistic workload characteristics",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			regFile.WriteReg(5, 0x8000) // t0 = buffer address
		},
		Program: BuildProgram(
			EncodeADDI(10, 0, 7), // a0 = 7
			EncodeSD(10, 5, 0),   // spill
			EncodeLD(6, 5, 0),    // t1 = reload
			EncodeADD(10, 10, 6), // a0 = 14
			EncodeJAL(1, 48),     // call add_five -> 19

			EncodeSD(10, 5, 8),
			EncodeLD(6, 5, 8),
			EncodeADD(10, 10, 6), // a0 = 38
			EncodeJAL(1, 32),     // call add_five -> 43

			EncodeSD(10, 5, 16),
			EncodeLD(6, 5, 16),
			EncodeADD(10, 10, 6), // a0 = 86
			EncodeJAL(1, 16),     // call add_five -> 91

			EncodeADDI(10, 10, 9), // a0 = 100
			EncodeADDI(17, 0, 93), // a7 = exit
			EncodeECALL(),

			// add_five function (at byte 64)
			EncodeADDI(10, 10, 5), // a0 += 5
			EncodeJALR(0, 1, 0),   // ret
		),
		ExpectedExit: 100,
	}
}

// 7. Vector Multiply - element-wise multiply with the M extension
func vectorMultiply() Benchmark {
	return Benchmark{
		Name:        "vector_multiply",
		Description: "4-element vector multiply (MUL) with dot product accumulation",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			a := []uint64{10, 20, 30, 40}
			b := []uint64{1, 2, 3, 4}
			for i := range a {
				_ = memory.Write64(0x8000+uint64(8*i), a[i])
				_ = memory.Write64(0x8100+uint64(8*i), b[i])
			}
		},
		Program: BuildProgram(
			EncodeLUI(5, 8),       // t0 = 0x8000 (A)
			EncodeLUI(6, 8),       //
			EncodeADDI(6, 6, 256), // t1 = 0x8100 (B)
			EncodeLUI(7, 8),       //
			EncodeADDI(7, 7, 512), // t2 = 0x8200 (C)
			EncodeADDI(10, 0, 0),  // a0 = dot product

			EncodeLD(11, 5, 0), // a1 = A[0]
			EncodeLD(12, 6, 0), // a2 = B[0]
			EncodeMUL(13, 11, 12),
			EncodeSD(13, 7, 0), // C[0] = a1 * a2
			EncodeADD(10, 10, 13),

			EncodeLD(11, 5, 8),
			EncodeLD(12, 6, 8),
			EncodeMUL(13, 11, 12),
			EncodeSD(13, 7, 8),
			EncodeADD(10, 10, 13),

			EncodeLD(11, 5, 16),
			EncodeLD(12, 6, 16),
			EncodeMUL(13, 11, 12),
			EncodeSD(13, 7, 16),
			EncodeADD(10, 10, 13),

			EncodeLD(11, 5, 24),
			EncodeLD(12, 6, 24),
			EncodeMUL(13, 11, 12),
			EncodeSD(13, 7, 24),
			EncodeADD(10, 10, 13),

			EncodeADDI(17, 0, 93), // a7 = exit
			EncodeECALL(),
		),
		ExpectedExit: 300, // 10*1 + 20*2 + 30*3 + 40*4
	}
}

// 8. Loop Sum - a real backward branch loop
func loopSum() Benchmark {
	return Benchmark{
		Name:        "loop_sum",
		Description: "Sum 0..9 with a BNE loop - measures taken backward branches",
		Program: BuildProgram(
			EncodeADDI(5, 0, 0),   // t0 = i = 0
			EncodeADDI(6, 0, 10),  // t1 = n = 10
			EncodeADDI(10, 0, 0),  // a0 = sum = 0
			EncodeADD(10, 10, 5),  // loop: sum += i
			EncodeADDI(5, 5, 1),   // i++
			EncodeBNE(5, 6, -8),   // branch back to loop
			EncodeADDI(17, 0, 93), // a7 = exit
			EncodeECALL(),
		),
		ExpectedExit: 45, // 0+1+...+9
	}
}

// 9. Multiply Chain - serial MULs through a single register
func multiplyChain() Benchmark {
	return Benchmark{
		Name:        "multiply_chain",
		Description: "10 dependent MULs (a0 *= 3) - measures M extension latency",
		Program: BuildProgram(
			EncodeADDI(5, 0, 3),  // t0 = 3
			EncodeADDI(10, 0, 1), // a0 = 1
			EncodeMUL(10, 10, 5),
			EncodeMUL(10, 10, 5),
			EncodeMUL(10, 10, 5),
			EncodeMUL(10, 10, 5),
			EncodeMUL(10, 10, 5),
			EncodeMUL(10, 10, 5),
			EncodeMUL(10, 10, 5),
			EncodeMUL(10, 10, 5),
			EncodeMUL(10, 10, 5),
			EncodeMUL(10, 10, 5),
			EncodeADDI(17, 0, 93), // a7 = exit
			EncodeECALL(),
		),
		ExpectedExit: 59049, // 3^10
	}
}
