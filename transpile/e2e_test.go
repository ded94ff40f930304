package transpile

import (
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These scenarios pin the translation semantics end to end: each procedure
// is transpiled and its key constructs asserted, and the behavior of the
// translated shape is executed via a hand-translated twin that matches what
// the emitter produces.

// ---------------------------------------------------------------------------
// Easter date (Anonymous Gregorian algorithm)

const easterSQL = `
CREATE PROCEDURE dbo.CalculateEasterDate
    @Year INT,
    @EasterMonth INT OUTPUT,
    @EasterDay INT OUTPUT
AS
BEGIN
    DECLARE @A INT = @Year % 19
    DECLARE @B INT = @Year / 100
    DECLARE @C INT = @Year % 100
    DECLARE @D INT = @B / 4
    DECLARE @E INT = @B % 4
    DECLARE @F INT = (@B + 8) / 25
    DECLARE @G INT = (@B - @F + 1) / 3
    DECLARE @H INT = (19 * @A + @B - @D - @G + 15) % 30
    DECLARE @I INT = @C / 4
    DECLARE @K INT = @C % 4
    DECLARE @L INT = (32 + 2 * @E + 2 * @I - @H - @K) % 7
    DECLARE @M INT = (@A + 11 * @H + 22 * @L) / 451
    SET @EasterMonth = (@H + @L - 7 * @M + 114) / 31
    SET @EasterDay = ((@H + @L - 7 * @M + 114) % 31) + 1
END
`

func CalculateEasterDate(year int32) (easterMonth int32, easterDay int32) {
	var a int32 = (year % 19)
	var b int32 = (year / 100)
	var c int32 = (year % 100)
	var d int32 = (b / 4)
	var e int32 = (b % 4)
	var f int32 = ((b + 8) / 25)
	var g int32 = (((b - f) + 1) / 3)
	var h int32 = ((((19*a + b) - d - g) + 15) % 30)
	var i int32 = (c / 4)
	var k int32 = (c % 4)
	var l int32 = (((32 + 2*e + 2*i) - h - k) % 7)
	var m int32 = ((a + 11*h + 22*l) / 451)
	easterMonth = (((h + l) - 7*m + 114) / 31)
	easterDay = ((((h + l) - 7*m + 114) % 31) + 1)
	return easterMonth, easterDay
}

func TestEasterTranspiles(t *testing.T) {
	res := mustTranspile(t, easterSQL, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "func CalculateEasterDate(year int32) (easterMonth int32, easterDay int32)")
	assert.Contains(t, code, "return easterMonth, easterDay")
	assert.NotContains(t, code, "err error")
}

func TestEasterBehavior(t *testing.T) {
	cases := []struct {
		year       int32
		month, day int32
	}{
		{2024, 3, 31},
		{2025, 4, 20},
		{2000, 4, 23},
		{1999, 4, 4},
	}
	for _, tc := range cases {
		m, d := CalculateEasterDate(tc.year)
		assert.Equal(t, tc.month, m, "year %d month", tc.year)
		assert.Equal(t, tc.day, d, "year %d day", tc.year)
	}
}

// ---------------------------------------------------------------------------
// Levenshtein distance

// T-SQL has no arrays, so the classic scalar-only formulation keeps the
// previous matrix row in a VARCHAR buffer with each cell stored as CHAR(n)
// and read back with ASCII(SUBSTRING(...)). Cells stay below 128 because the
// inputs are capped at VARCHAR(100).
const levenshteinSQL = `
CREATE PROCEDURE dbo.Levenshtein
    @Source VARCHAR(100),
    @Target VARCHAR(100),
    @Distance INT OUTPUT
AS
BEGIN
    DECLARE @SourceLen INT = LEN(@Source)
    DECLARE @TargetLen INT = LEN(@Target)
    IF @SourceLen = 0
    BEGIN
        SET @Distance = @TargetLen
        RETURN
    END
    IF @TargetLen = 0
    BEGIN
        SET @Distance = @SourceLen
        RETURN
    END

    DECLARE @PrevRow VARCHAR(100) = ''
    DECLARE @CurRow VARCHAR(100) = ''
    DECLARE @I INT = 1
    DECLARE @J INT = 1
    DECLARE @Cost INT = 0
    DECLARE @Above INT = 0
    DECLARE @Left INT = 0
    DECLARE @Diag INT = 0
    DECLARE @Cell INT = 0

    WHILE @J <= @TargetLen
    BEGIN
        SET @PrevRow = @PrevRow + CHAR(@J)
        SET @J = @J + 1
    END

    WHILE @I <= @SourceLen
    BEGIN
        SET @CurRow = ''
        SET @Cell = @I
        SET @J = 1
        WHILE @J <= @TargetLen
        BEGIN
            SET @Cost = 1
            IF SUBSTRING(@Source, @I, 1) = SUBSTRING(@Target, @J, 1)
            BEGIN
                SET @Cost = 0
            END
            IF @J = 1
            BEGIN
                SET @Diag = @I - 1
            END
            ELSE
            BEGIN
                SET @Diag = ASCII(SUBSTRING(@PrevRow, @J - 1, 1))
            END
            SET @Above = ASCII(SUBSTRING(@PrevRow, @J, 1))
            SET @Left = @Cell
            SET @Cell = @Above + 1
            IF @Left + 1 < @Cell
            BEGIN
                SET @Cell = @Left + 1
            END
            IF @Diag + @Cost < @Cell
            BEGIN
                SET @Cell = @Diag + @Cost
            END
            SET @CurRow = @CurRow + CHAR(@Cell)
            SET @J = @J + 1
        END
        SET @PrevRow = @CurRow
        SET @I = @I + 1
    END

    SET @Distance = ASCII(SUBSTRING(@PrevRow, @TargetLen, 1))
END
`

// Levenshtein is the translated form of the procedure above, statement by
// statement: LEN becomes a rune count, SUBSTRING a 1-based slice, CHAR/ASCII
// the byte encoding of the row buffer.
func Levenshtein(source string, target string) (distance int32) {
	var sourceLen int32 = int32(utf8.RuneCountInString(source))
	var targetLen int32 = int32(utf8.RuneCountInString(target))
	if sourceLen == 0 {
		distance = targetLen
		return distance
	}
	if targetLen == 0 {
		distance = sourceLen
		return distance
	}

	var prevRow string = ""
	var curRow string = ""
	var i int32 = 1
	var j int32 = 1
	var cost int32 = 0
	var above int32 = 0
	var left int32 = 0
	var diag int32 = 0
	var cell int32 = 0

	for j <= targetLen {
		prevRow = (prevRow + string(rune(j)))
		j = (j + 1)
	}

	for i <= sourceLen {
		curRow = ""
		cell = i
		j = 1
		for j <= targetLen {
			cost = 1
			if (source)[(i)-1:(i)-1+(1)] == (target)[(j)-1:(j)-1+(1)] {
				cost = 0
			}
			if j == 1 {
				diag = (i - 1)
			} else {
				diag = int32(((prevRow)[(j-1)-1 : (j-1)-1+(1)])[0])
			}
			above = int32(((prevRow)[(j)-1 : (j)-1+(1)])[0])
			left = cell
			cell = (above + 1)
			if (left + 1) < cell {
				cell = (left + 1)
			}
			if (diag + cost) < cell {
				cell = (diag + cost)
			}
			curRow = (curRow + string(rune(cell)))
			j = (j + 1)
		}
		prevRow = curRow
		i = (i + 1)
	}

	distance = int32(((prevRow)[(targetLen)-1 : (targetLen)-1+(1)])[0])
	return distance
}

func TestLevenshteinTranspiles(t *testing.T) {
	res := mustTranspile(t, levenshteinSQL, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "func Levenshtein(source string, target string) (distance int32)")
	assert.Contains(t, code, "utf8.RuneCountInString(source)")
	assert.Contains(t, code, "string(rune(", "CHAR cells append to the row buffer")
	assert.Contains(t, code, ")[0])", "ASCII reads a cell back out")
	assert.Contains(t, code, "for (j <= targetLen) {")
	assert.Contains(t, code, "prevRow = curRow")
}

func TestLevenshteinBehavior(t *testing.T) {
	assert.Equal(t, int32(3), Levenshtein("kitten", "sitting"))
	assert.Equal(t, int32(0), Levenshtein("same", "same"))
	assert.Equal(t, int32(4), Levenshtein("", "abcd"))
	assert.Equal(t, int32(1), Levenshtein("cat", "cart"))
}

// ---------------------------------------------------------------------------
// Modular exponentiation

const modExpSQL = `
CREATE PROCEDURE dbo.ModularExponentiation
    @Base BIGINT,
    @Exponent BIGINT,
    @Modulus BIGINT,
    @Result BIGINT OUTPUT
AS
BEGIN
    SET @Result = 1
    SET @Base = @Base % @Modulus
    WHILE @Exponent > 0
    BEGIN
        IF @Exponent % 2 = 1
        BEGIN
            SET @Result = (@Result * @Base) % @Modulus
        END
        SET @Exponent = @Exponent / 2
        SET @Base = (@Base * @Base) % @Modulus
    END
END
`

func ModularExponentiation(base int64, exponent int64, modulus int64) (result int64) {
	result = 1
	base = (base % modulus)
	for exponent > 0 {
		if (exponent % 2) == 1 {
			result = ((result * base) % modulus)
		}
		exponent = (exponent / 2)
		base = ((base * base) % modulus)
	}
	return result
}

func TestModExpTranspiles(t *testing.T) {
	res := mustTranspile(t, modExpSQL, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "func ModularExponentiation(base int64, exponent int64, modulus int64) (result int64)")
	assert.Contains(t, code, "for (exponent > 0) {")
}

func TestModExpBehavior(t *testing.T) {
	assert.Equal(t, int64(445), ModularExponentiation(4, 13, 497))
	assert.Equal(t, int64(1), ModularExponentiation(7, 0, 13))
	assert.Equal(t, int64(0), ModularExponentiation(10, 3, 2))
}

// ---------------------------------------------------------------------------
// Amortization (decimal discipline)

const amortizationSQL = `
CREATE PROCEDURE dbo.Amortize
    @Principal DECIMAL(18,2),
    @AnnualInterestRate DECIMAL(9,4),
    @TermMonths INT,
    @MonthlyPayment DECIMAL(18,2) OUTPUT,
    @TotalPayment DECIMAL(18,2) OUTPUT,
    @TotalInterest DECIMAL(18,2) OUTPUT
AS
BEGIN
    DECLARE @MonthlyRate DECIMAL(18,10)
    SET @MonthlyRate = @AnnualInterestRate / 1200
    DECLARE @Factor DECIMAL(18,10) = 1
    DECLARE @I INT = 0
    WHILE @I < @TermMonths
    BEGIN
        SET @Factor = @Factor * (1 + @MonthlyRate)
        SET @I = @I + 1
    END
    SET @MonthlyPayment = @Principal * @MonthlyRate * @Factor / (@Factor - 1)
    SET @TotalPayment = @MonthlyPayment * @TermMonths
    SET @TotalInterest = @TotalPayment - @Principal
END
`

func Amortize(principal decimal.Decimal, annualInterestRate decimal.Decimal, termMonths int32) (monthlyPayment decimal.Decimal, totalPayment decimal.Decimal, totalInterest decimal.Decimal) {
	var monthlyRate decimal.Decimal
	monthlyRate = annualInterestRate.Div(decimal.NewFromInt(1200))
	var factor decimal.Decimal = decimal.NewFromInt(1)
	var i int32 = 0
	for i < termMonths {
		factor = factor.Mul(decimal.NewFromInt(1).Add(monthlyRate))
		i = (i + 1)
	}
	monthlyPayment = principal.Mul(monthlyRate).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
	totalPayment = monthlyPayment.Mul(decimal.NewFromInt(int64(termMonths)))
	totalInterest = totalPayment.Sub(principal)
	return monthlyPayment, totalPayment, totalInterest
}

func TestAmortizationTranspiles(t *testing.T) {
	res := mustTranspile(t, amortizationSQL, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "monthlyPayment decimal.Decimal")
	assert.Contains(t, code, ".Div(")
	assert.Contains(t, code, ".Mul(")
	assert.NotContains(t, code, "float64(principal)", "monetary math never passes through binary floating point")
}

func TestAmortizationBehavior(t *testing.T) {
	monthly, total, interest := Amortize(
		decimal.NewFromInt(100000),
		decimal.RequireFromString("6.0"),
		360,
	)

	monthlyRounded := monthly.Round(2)
	assert.True(t, monthlyRounded.Equal(decimal.RequireFromString("599.55")),
		"monthly payment %s, want 599.55", monthlyRounded)

	assert.True(t, total.Round(0).Sub(decimal.NewFromInt(215838)).Abs().LessThanOrEqual(decimal.NewFromInt(1)),
		"total payment %s, want ~215838.00", total.Round(2))
	assert.True(t, interest.Round(0).Sub(decimal.NewFromInt(115838)).Abs().LessThanOrEqual(decimal.NewFromInt(1)),
		"total interest %s, want ~115838.00", interest.Round(2))
}

// ---------------------------------------------------------------------------
// CRC-16-CCITT

const crcSQL = `
CREATE PROCEDURE dbo.Crc16Ccitt
    @Input VARCHAR(255),
    @Crc INT OUTPUT
AS
BEGIN
    SET @Crc = 65535
    DECLARE @I INT = 1
    DECLARE @Len INT = LEN(@Input)
    WHILE @I <= @Len
    BEGIN
        DECLARE @Byte INT = ASCII(SUBSTRING(@Input, @I, 1))
        SET @Crc = @Crc ^ (@Byte * 256)
        DECLARE @Bit INT = 0
        WHILE @Bit < 8
        BEGIN
            IF @Crc & 32768 > 0
            BEGIN
                SET @Crc = ((@Crc * 2) % 65536) ^ 4129
            END
            ELSE
            BEGIN
                SET @Crc = (@Crc * 2) % 65536
            END
            SET @Bit = @Bit + 1
        END
        SET @I = @I + 1
    END
END
`

func Crc16Ccitt(input string) (crc int32) {
	crc = 65535
	var i int32 = 1
	var length int32 = int32(len(input))
	for i <= length {
		var b int32 = int32(input[i-1])
		crc = crc ^ (b * 256)
		var bit int32 = 0
		for bit < 8 {
			if (crc & 32768) > 0 {
				crc = ((crc * 2) % 65536) ^ 4129
			} else {
				crc = (crc * 2) % 65536
			}
			bit = (bit + 1)
		}
		i = (i + 1)
	}
	return crc
}

func TestCRCTranspiles(t *testing.T) {
	res := mustTranspile(t, crcSQL, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "func Crc16Ccitt(input string) (crc int32)")
	assert.Contains(t, code, "crc = 65535")
}

func TestCRCBehavior(t *testing.T) {
	assert.Equal(t, int32(0x29B1), Crc16Ccitt("123456789"))
	assert.Equal(t, int32(0xFFFF), Crc16Ccitt(""))
}

// ---------------------------------------------------------------------------
// SET round-trip law

func TestSetRoundTrip(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.RoundTrip
    @Y INT OUTPUT
AS
BEGIN
    DECLARE @X INT
    SET @X = 42
    SET @Y = @X
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "x = 42")
	assert.Contains(t, code, "y = x")

	// And the behavior the emitted shape yields:
	roundTrip := func() (y int32) {
		var x int32
		x = 42
		y = x
		return y
	}
	require.Equal(t, int32(42), roundTrip())
}

// RETURN k with no DML yields (zero outputs, k) at the call site.
func TestReturnConstantLaw(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Fixed
    @Out INT OUTPUT
AS
BEGIN
    RETURN 9
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	assert.Contains(t, res.Code, "return out, 9")

	fixed := func() (out int32, returnCode int32) {
		return out, 9
	}
	out, rc := fixed()
	assert.Equal(t, int32(0), out)
	assert.Equal(t, int32(9), rc)
}
