package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/moneymate-th/transaction-ai-service/internal/models"
)

// Both pipelines share one response schema so the mapping code has a single
// shape to deal with:
//
//	{ "amount": number, "type": "expense"|"income", "categoryName": string,
//	  "date": "YYYY-MM-DD", "note": string, "ref": string }
//
// The date is always re-normalized in code afterwards; the prompts still
// carry the Thai month and Buddhist-era tables because the models read slips
// more reliably with them.

var thaiWeekdays = map[time.Weekday]string{
	time.Sunday:    "วันอาทิตย์",
	time.Monday:    "วันจันทร์",
	time.Tuesday:   "วันอังคาร",
	time.Wednesday: "วันพุธ",
	time.Thursday:  "วันพฤหัสบดี",
	time.Friday:    "วันศุกร์",
	time.Saturday:  "วันเสาร์",
}

// textSystemPrompt builds the instruction for free-text analysis. The
// category list is embedded so the model picks names the user actually has.
func textSystemPrompt(categories []models.Category, now time.Time) string {
	catsString := "อื่นๆ"
	if len(categories) > 0 {
		names := make([]string, 0, len(categories))
		for _, c := range categories {
			names = append(names, fmt.Sprintf("%s (%s)", c.Name, c.Type))
		}
		catsString = strings.Join(names, ", ")
	}

	dateStr := now.Format("2006-01-02")
	dayName := thaiWeekdays[now.Weekday()]

	return fmt.Sprintf(`คุณคือผู้ช่วยวิเคราะห์รายรับรายจ่ายภาษาไทย ตอบกลับเป็น JSON เท่านั้น ห้ามใช้ Markdown code block

## ข้อมูลสำคัญ
- วันที่ปัจจุบัน: %s (%s)
- หมวดหมู่ที่มี: %s

## กฎการวิเคราะห์
1. **ชื่อคน vs สิ่งของ**: หากมีคำที่อาจเป็นชื่อคน (เช่น ข้าวหอม, มะลิ, น้ำผึ้ง) ให้พิจารณาบริบท:
   - "ให้เงินข้าวหอมไปโรงเรียน" → ข้าวหอม = ชื่อคน, หมวด = การศึกษา/ลูก
   - "ซื้อข้าวหอมมะลิ 5 กิโล" → ข้าวหอมมะลิ = สินค้า, หมวด = อาหาร

2. **การจัดหมวดหมู่ตามบริบท**:
   - "ให้เงิน/ค่าขนม + ไปโรงเรียน" → การศึกษา, ลูก, หรือ อื่นๆ
   - "ให้เงินแม่/พ่อ" → ครอบครัว หรือ อื่นๆ
   - "ค่ารถ/แท็กซี่/Grab" → เดินทาง
   - "กินข้าว/อาหาร/ชานม" → อาหาร

3. **เกี่ยวกับวันที่**
   - ไม่มีข้อมูลวันที่ในประโยค → วันที่ปัจจุบัน
   - เมื่อวาน → วันที่ปัจจุบัน - 1 วัน
   - เมื่อวานซืน → วันที่ปัจจุบัน - 2 วัน
   - บอกวันที่มาอย่างเดียวเช่น เมื่อวันที่ 5 → วันที่ 5 เดือนปัจจุบัน ยกเว้นจะระบุเดือนด้วย

4. **note**: ใส่รายละเอียดที่เป็นประโยชน์ เช่น "ให้ข้าวหอมไปโรงเรียน", "ค่าอาหารกลางวัน"

5. **ถ้าไม่แน่ใจหมวด**: ให้ใช้ "อื่นๆ" แทนการเดาผิด

## Format JSON (ต้องตอบ JSON เท่านั้น)
{
  "amount": number,
  "type": "expense" | "income",
  "categoryName": string (ต้องเป็นหมวดที่มีอยู่หรือ "อื่นๆ"),
  "date": "YYYY-MM-DD",
  "note": string (สรุปสั้นๆ),
  "ref": ""
}`, dateStr, dayName, catsString)
}

// slipSystemPrompt builds the instruction for Thai bank-slip images.
func slipSystemPrompt() string {
	return `วิเคราะห์รูปสลิปธนาคารนี้และดึงข้อมูลออกมาเป็น JSON:
{
  "amount": <number, จำนวนเงินที่โอน>,
  "type": "<string, 'expense' ถ้าเป็นการโอนออก/จ่ายเงิน, 'income' ถ้าเป็นการรับเงิน โดยปกติสลิปจะเป็น expense>",
  "categoryName": "",
  "date": "<YYYY-MM-DD, วันที่โอน>",
  "note": "<string, ชื่อผู้รับหรือธนาคาร คำอธิบายสั้นๆ>",
  "ref": "<string, เลขอ้างอิงธุรกรรม ถ้าไม่มีให้ใส่ string ว่าง>"
}

## การแปลงเดือนภาษาไทย (สำคัญมาก):
- ม.ค. = มกราคม = 01
- ก.พ. = กุมภาพันธ์ = 02
- มี.ค. = มีนาคม = 03
- เม.ย. = เมษายน = 04
- พ.ค. = พฤษภาคม = 05
- มิ.ย. = มิถุนายน = 06
- ก.ค. = กรกฎาคม = 07
- ส.ค. = สิงหาคม = 08
- ก.ย. = กันยายน = 09
- ต.ค. = ตุลาคม = 10
- พ.ย. = พฤศจิกายน = 11
- ธ.ค. = ธันวาคม = 12

## การแปลงปี พ.ศ. เป็น ค.ศ.:
- ปี พ.ศ. 2569 = ค.ศ. 2026
- ปี พ.ศ. 2568 = ค.ศ. 2025
- สูตร: ค.ศ. = พ.ศ. - 543

ตอบเป็น JSON เท่านั้น ห้ามใส่ markdown หรือข้อความอื่น`
}
